package s3fs

// Object stores model neither POSIX permissions nor capacity. The queries
// below return fixed answers and the setters always report failure.

// CanRead reports true.
func (fs *FileSystem) CanRead(p string) bool { return true }

// CanReadAs reports false: per-user access is not evaluated.
func (fs *FileSystem) CanReadAs(p, user string) bool { return false }

// CanWrite reports true.
func (fs *FileSystem) CanWrite(p string) bool { return true }

// CanExecute reports true.
func (fs *FileSystem) CanExecute(p string) bool { return true }

// TotalSpace reports 0; the store has no fixed capacity.
func (fs *FileSystem) TotalSpace(p string) int64 { return 0 }

// FreeSpace reports 0.
func (fs *FileSystem) FreeSpace(p string) int64 { return 0 }

// UsableSpace reports 0.
func (fs *FileSystem) UsableSpace(p string) int64 { return 0 }

// SetOwner reports false; object owners cannot be changed.
func (fs *FileSystem) SetOwner(p, user string) bool { return false }

// SetOwnerGroup reports false.
func (fs *FileSystem) SetOwnerGroup(p, user, group string) bool { return false }

// SetGroup reports false.
func (fs *FileSystem) SetGroup(p, group string) bool { return false }

// SetPermission reports false; objects carry no permission bits.
func (fs *FileSystem) SetPermission(p, permission string) bool { return false }
