package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

// Every artifact starts with a fixed header followed by a JSON payload.
const (
	MagicBytes    uint32 = 0x4C534E50 // "LSNP"
	FormatVersion uint32 = 1
	HeaderSize    int    = 32

	IndexFile = "index.lsnp"
	StoreFile = "store.lsnp"
)

type artifactKind uint32

const (
	kindIndex artifactKind = 1
	kindStore artifactKind = 2
)

// header layout, little endian:
//
//	0:4   magic
//	4:8   version
//	8:12  kind
//	12:16 crc32 of payload
//	16:24 payload size
//	24:32 created at, unix nanoseconds
type header struct {
	Magic       uint32
	Version     uint32
	Kind        artifactKind
	Checksum    uint32
	PayloadSize uint64
	CreatedAt   int64
}

func (h header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Kind))
	binary.LittleEndian.PutUint32(b[12:16], h.Checksum)
	binary.LittleEndian.PutUint64(b[16:24], h.PayloadSize)
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.CreatedAt))
	return b
}

func unmarshalHeader(b []byte) header {
	return header{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		Kind:        artifactKind(binary.LittleEndian.Uint32(b[8:12])),
		Checksum:    binary.LittleEndian.Uint32(b[12:16]),
		PayloadSize: binary.LittleEndian.Uint64(b[16:24]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(b[24:32])),
	}
}

type indexPayload struct {
	Generation string            `json:"generation"`
	Terms      []index.TermEntry `json:"terms"`
}

type storedLine struct {
	LineID  int    `json:"line_id"`
	Content string `json:"content"`
}

type storedDocument struct {
	ID    string       `json:"id"`
	Lines []storedLine `json:"lines"`
}

type storePayload struct {
	Generation string           `json:"generation"`
	Documents  []storedDocument `json:"documents"`
}

// FileGateway keeps the inverted index and the line store as two files in
// one directory. Both carry the build generation; a pair whose generations
// differ is treated as corrupt.
type FileGateway struct {
	dir string
}

func NewFileGateway(dir string) *FileGateway {
	return &FileGateway{dir: dir}
}

func (g *FileGateway) Save(ctx context.Context, snap Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	created := snap.CreatedAt.UnixNano()

	idxData, err := json.Marshal(indexPayload{
		Generation: snap.Generation,
		Terms:      snap.Index.Inverted().Entries(),
	})
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	storeData, err := json.Marshal(storePayload{
		Generation: snap.Generation,
		Documents:  storedDocuments(snap.Index.Store()),
	})
	if err != nil {
		return fmt.Errorf("marshaling store: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idxTmp, err := g.writeTemp(IndexFile, kindIndex, created, idxData)
	if err != nil {
		return err
	}
	storeTmp, err := g.writeTemp(StoreFile, kindStore, created, storeData)
	if err != nil {
		os.Remove(idxTmp)
		return err
	}
	if err := os.Rename(idxTmp, filepath.Join(g.dir, IndexFile)); err != nil {
		os.Remove(idxTmp)
		os.Remove(storeTmp)
		return fmt.Errorf("renaming index artifact: %w", err)
	}
	if err := os.Rename(storeTmp, filepath.Join(g.dir, StoreFile)); err != nil {
		os.Remove(storeTmp)
		return fmt.Errorf("renaming store artifact: %w", err)
	}
	return nil
}

func storedDocuments(store *index.Store) []storedDocument {
	docs := make([]storedDocument, 0)
	store.Each(func(doc string, line int, content string) bool {
		if n := len(docs); n == 0 || docs[n-1].ID != doc {
			docs = append(docs, storedDocument{ID: doc})
		}
		last := &docs[len(docs)-1]
		last.Lines = append(last.Lines, storedLine{LineID: line, Content: content})
		return true
	})
	return docs
}

func (g *FileGateway) writeTemp(name string, kind artifactKind, created int64, payload []byte) (string, error) {
	tmpPath := filepath.Join(g.dir, name+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp artifact %s: %w", name, err)
	}
	defer f.Close()
	h := header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		Kind:        kind,
		Checksum:    crc32.ChecksumIEEE(payload),
		PayloadSize: uint64(len(payload)),
		CreatedAt:   created,
	}
	if _, err := f.Write(h.marshal()); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing header of %s: %w", name, err)
	}
	if _, err := f.Write(payload); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing payload of %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing %s: %w", name, err)
	}
	return tmpPath, nil
}

func (g *FileGateway) Load(ctx context.Context) (Snapshot, error) {
	idxPath := filepath.Join(g.dir, IndexFile)
	storePath := filepath.Join(g.dir, StoreFile)
	_, idxErr := os.Stat(idxPath)
	_, storeErr := os.Stat(storePath)
	if errors.Is(idxErr, fs.ErrNotExist) && errors.Is(storeErr, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: no artifacts in %s", apperrors.ErrSnapshotNotFound, g.dir)
	}

	idxHeader, idxData, err := readArtifact(idxPath, kindIndex)
	if err != nil {
		return Snapshot{}, err
	}
	storeHeader, storeData, err := readArtifact(storePath, kindStore)
	if err != nil {
		return Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var ip indexPayload
	if err := json.Unmarshal(idxData, &ip); err != nil {
		return Snapshot{}, corrupt("parsing %s: %v", IndexFile, err)
	}
	var sp storePayload
	if err := json.Unmarshal(storeData, &sp); err != nil {
		return Snapshot{}, corrupt("parsing %s: %v", StoreFile, err)
	}
	if ip.Generation != sp.Generation || idxHeader.CreatedAt != storeHeader.CreatedAt {
		return Snapshot{}, corrupt("artifacts from different builds: %q vs %q", ip.Generation, sp.Generation)
	}

	inv := index.NewInverted()
	for _, entry := range ip.Terms {
		inv.Set(entry.Term, entry.Postings)
	}
	store := index.NewStore()
	for _, doc := range sp.Documents {
		for _, line := range doc.Lines {
			store.Put(doc.ID, line.LineID, line.Content)
		}
	}
	idx, err := index.Assemble(inv, store)
	if err != nil {
		return Snapshot{}, corrupt("%v", err)
	}
	return Snapshot{
		Index:      idx,
		Generation: ip.Generation,
		CreatedAt:  time.Unix(0, idxHeader.CreatedAt),
	}, nil
}

func readArtifact(path string, kind artifactKind) (header, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return header{}, nil, corrupt("missing %s", filepath.Base(path))
		}
		return header{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) < HeaderSize {
		return header{}, nil, corrupt("%s truncated header", filepath.Base(path))
	}
	h := unmarshalHeader(data[:HeaderSize])
	switch {
	case h.Magic != MagicBytes:
		return header{}, nil, corrupt("%s bad magic bytes %x", filepath.Base(path), h.Magic)
	case h.Version != FormatVersion:
		return header{}, nil, corrupt("%s unsupported version %d", filepath.Base(path), h.Version)
	case h.Kind != kind:
		return header{}, nil, corrupt("%s wrong artifact kind %d", filepath.Base(path), h.Kind)
	}
	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.PayloadSize {
		return header{}, nil, corrupt("%s payload is %d bytes, header says %d", filepath.Base(path), len(payload), h.PayloadSize)
	}
	if crc32.ChecksumIEEE(payload) != h.Checksum {
		return header{}, nil, corrupt("%s checksum mismatch", filepath.Base(path))
	}
	return h, payload, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrSnapshotCorrupt, fmt.Sprintf(format, args...))
}

func (g *FileGateway) Close() error { return nil }
