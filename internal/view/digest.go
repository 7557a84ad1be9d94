package view

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"encmirror/internal/model"
)

// digestKey is the BLAKE3 key for queue digests: the ASCII domain name,
// zero-padded to 32 bytes.
var digestKey = [32]byte{
	'e', 'n', 'c', 'm', 'i', 'r', 'r', 'o', 'r', '.', 'q', 'u', 'e', 'u', 'e', '.',
	'd', 'i', 'g', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest fingerprints counters and the listed jobs. Two views with the same
// digest render identically, so clients can skip redundant redraws.
func Digest(counters model.Counters, jobs []model.Job) string {
	var sb strings.Builder
	sb.WriteString("A=")
	sb.WriteString(strconv.Itoa(counters.Active))
	sb.WriteString("|E=")
	sb.WriteString(strconv.Itoa(counters.Encoding))
	sb.WriteString("|C=")
	sb.WriteString(strconv.Itoa(counters.Complete))
	sb.WriteString("|P=")
	sb.WriteString(strconv.Itoa(counters.Pending))
	sb.WriteString("|F=")
	sb.WriteString(strconv.Itoa(counters.Failed))
	sb.WriteString("|X=")
	sb.WriteString(strconv.Itoa(counters.Canceled))
	sb.WriteByte(';')

	for _, job := range jobs {
		fields := []string{
			strconv.FormatInt(job.ID, 10),
			string(job.State),
			StateLabel(job),
			job.FileName,
			job.ServiceName,
			job.DisplayProfileName(),
			strconv.Itoa(job.Priority),
			flag(job.IsBatch),
			digestTime(job.EncodeStart),
			digestTime(job.EncodeFinish),
			strconv.Itoa(job.ConsoleID),
			flag(job.IsTooSmall()),
		}
		sb.WriteString(strings.Join(fields, "|"))
		sb.WriteByte(';')
	}

	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		// Only returned for a key that is not 32 bytes.
		panic("view: blake3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(sb.String()))
	return hex.EncodeToString(hasher.Sum(nil))
}

func digestTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UTC().UnixNano(), 10)
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
