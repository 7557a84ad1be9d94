// Package config reads encmirror.toml for both encmirrord and the encmirror CLI.
//
// Load uses the explicit path when one is given, otherwise the first of
// ~/.config/encmirror/config.toml and ./encmirror.toml that exists. A missing
// file yields Default. Values are normalized (tilde expansion, trimmed names,
// defaulted history sizes) before Validate runs. ENCMIRROR_API_TOKEN fills
// paths.api_token when the file leaves it empty.
package config
