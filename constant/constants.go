package constant

const (
	AppName = "mip"

	// DefaultArchiveExt is the suffix archive.Name always produces.
	DefaultArchiveExt = ".tar.gz"
)
