package extract

// extractorScript ships and runs the extraction helper exposing
// untar(archivePath, destDir). If the board doesn't already carry an
// importable tar reader, it defines a minimal USTAR fallback inline
// (spec.md §4.10: "if not, ships a fallback implementation from the
// tool") sufficient for the archives C5 produces: regular files and
// directories only, 512-byte header blocks, no sparse/long-name/link
// extensions. It decompresses the gzip tape archive via the board's
// deflate module, creates destDir if missing, and for each entry either
// creates a directory (emitting "Creating directory <path>") or writes a
// regular file, emitting the literal "Extraction complete" on success
// (spec.md §6).
const extractorScript = `import deflate, os
try:
    import utarfile as _tarfile
except ImportError:
    import uio as _io

    class _FallbackTarInfo:
        def __init__(self, name, type, size):
            self.name = name
            self.type = type
            self.size = size

    class _FallbackTarFile:
        DIRTYPE = "dir"
        REGTYPE = "file"

        def __init__(self, f):
            self.f = f
            self._remaining = 0

        def __iter__(self):
            return self

        def __next__(self):
            self._skip_current()
            header = self.f.read(512)
            if not header or header == b"\x00" * 512:
                raise StopIteration
            name = header[0:100].rstrip(b"\x00").decode()
            size = int(header[124:136].rstrip(b"\x00") or b"0", 8)
            typeflag = header[156:157]
            type = self.DIRTYPE if typeflag == b"5" else self.REGTYPE
            self._remaining = size
            return _FallbackTarInfo(name, type, size)

        def _skip_current(self):
            if self._remaining:
                pad = (512 - (self._remaining % 512)) % 512
                self.f.read(self._remaining + pad)
                self._remaining = 0

        def extractfile(self, entry):
            data = self.f.read(entry.size)
            pad = (512 - (entry.size % 512)) % 512
            if pad:
                self.f.read(pad)
            self._remaining = 0
            return _io.BytesIO(data)

        def close(self):
            pass

    class _tarfile:
        DIRTYPE = _FallbackTarFile.DIRTYPE
        TarFile = _FallbackTarFile

def _exists(path):
    try:
        os.stat(path)
        return True
    except OSError:
        return False

def untar(archive_path, dest_dir):
    if not _exists(dest_dir):
        os.mkdir(dest_dir)

    with open(archive_path, 'rb') as raw:
        with deflate.DeflateIO(raw, deflate.GZIP) as gz:
            archive = _tarfile.TarFile(gz)
            for entry in archive:
                name = entry.name
                if name in ('.', './'):
                    continue
                if name.startswith('./'):
                    name = name[2:]
                if name.startswith('/'):
                    name = name[1:]

                target = dest_dir + '/' + name

                if entry.type == _tarfile.DIRTYPE:
                    target = target.rstrip('/')
                    print("Creating directory", target)
                    os.mkdir(target)
                else:
                    f = archive.extractfile(entry)
                    with open(target, 'wb') as of:
                        of.write(f.read())
            archive.close()

    print("Extraction complete")
`
