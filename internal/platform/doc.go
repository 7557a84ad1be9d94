// Package platform reports host capabilities the server status pages need:
// free space on configured volumes and the processor layout.
//
// The implementation is chosen at build time. Linux reads statfs and sysfs;
// other targets return ErrUnsupported so callers can degrade gracefully.
package platform
