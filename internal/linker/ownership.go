package linker

import (
	"os"
)

// Ownership is applied best-effort to linked movie files so the media
// servers can read them. A negative UID or GID leaves that id unchanged; a
// zero Mode leaves permissions unchanged.
type Ownership struct {
	UID  int
	GID  int
	Mode os.FileMode
}

// Enabled reports whether any change would be made.
func (o Ownership) Enabled() bool {
	return o.UID >= 0 || o.GID >= 0 || o.Mode != 0
}

// Apply changes mode and owner of path, returning the errors encountered.
// Callers log and otherwise ignore them.
func (o Ownership) Apply(path string) []error {
	var errs []error
	if o.Mode != 0 {
		if err := os.Chmod(path, o.Mode); err != nil {
			errs = append(errs, err)
		}
	}
	if o.UID >= 0 || o.GID >= 0 {
		if err := os.Chown(path, o.UID, o.GID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ApplyLink changes the owner of the link itself.
func (o Ownership) ApplyLink(path string) []error {
	if o.UID < 0 && o.GID < 0 {
		return nil
	}
	if err := os.Lchown(path, o.UID, o.GID); err != nil {
		return []error{err}
	}
	return nil
}
