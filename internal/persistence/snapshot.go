// Package persistence implements the snapshot file and append log
// (C5 in spec.md §4.5). Snapshot generalizes rdb/rdb.go's flat Entry
// list/Save/Load/SaveToWriter/LoadFromReader to a per-database mapping
// plus the header fields (last-save wall time, last-save change counter)
// spec.md §3 requires, and adds TypeZSet/TypeVector entry kinds
// alongside the original String/List/Hash/Set.
package persistence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"myredis/internal/store"
)

const magicHeader = "MYREDISSNAP1"

type EntryType uint8

const (
	TypeString EntryType = 1
	TypeList   EntryType = 2
	TypeHash   EntryType = 3
	TypeSet    EntryType = 4
	TypeZSet   EntryType = 5
	TypeVector EntryType = 6
)

// Entry is one key's data within a single database's snapshot.
type Entry struct {
	Key            string
	Type           EntryType
	ExpireAtUnixMs int64 // 0 means no expiry

	String []byte
	List   [][]byte
	Hash   map[string][]byte
	Set    []string
	ZSet   []store.ZMember
	Vector []store.VecEntry
}

// Snapshot is the whole-file payload: every database's entries plus the
// bookkeeping the save-rule engine in internal/dbmanager needs to decide
// when the next snapshot is due.
type Snapshot struct {
	LastSaveUnixMs   int64
	LastSaveChanges  int64
	Databases        map[int][]Entry
}

// Save writes snap to filename via temp-file + fsync + rename, the same
// atomic-replace sequence rdb.Save uses.
func Save(filename string, snap Snapshot) error {
	if filename == "" {
		return errors.New("empty snapshot filename")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	tmp := filename + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	buf := bufio.NewWriterSize(f, 256*1024)

	if err := SaveToWriter(buf, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	_ = os.Remove(filename)
	return os.Rename(tmp, filename)
}

// Load reads filename and returns the decoded Snapshot.
func Load(filename string) (Snapshot, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	return LoadFromReader(bufio.NewReaderSize(f, 256*1024))
}

func SaveToWriter(w io.Writer, snap Snapshot) error {
	if _, err := io.WriteString(w, magicHeader); err != nil {
		return err
	}
	if err := writeInt64(w, snap.LastSaveUnixMs); err != nil {
		return err
	}
	if err := writeInt64(w, snap.LastSaveChanges); err != nil {
		return err
	}

	dbIDs := make([]int, 0, len(snap.Databases))
	for id := range snap.Databases {
		dbIDs = append(dbIDs, id)
	}
	sort.Ints(dbIDs)

	if err := writeUint32(w, uint32(len(dbIDs))); err != nil {
		return err
	}
	for _, id := range dbIDs {
		if err := writeUint32(w, uint32(id)); err != nil {
			return err
		}
		entries := append([]Entry(nil), snap.Databases[id]...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
		if err := writeUint32(w, uint32(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := writeEntry(w, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeEntry(w io.Writer, e Entry) error {
	if err := writeUint8(w, uint8(e.Type)); err != nil {
		return err
	}
	if err := writeString(w, e.Key); err != nil {
		return err
	}
	if err := writeInt64(w, e.ExpireAtUnixMs); err != nil {
		return err
	}

	switch e.Type {
	case TypeString:
		return writeBytes(w, e.String)
	case TypeList:
		if err := writeUint32(w, uint32(len(e.List))); err != nil {
			return err
		}
		for _, b := range e.List {
			if err := writeBytes(w, b); err != nil {
				return err
			}
		}
		return nil
	case TypeHash:
		fields := make([]string, 0, len(e.Hash))
		for k := range e.Hash {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		if err := writeUint32(w, uint32(len(fields))); err != nil {
			return err
		}
		for _, field := range fields {
			if err := writeString(w, field); err != nil {
				return err
			}
			if err := writeBytes(w, e.Hash[field]); err != nil {
				return err
			}
		}
		return nil
	case TypeSet:
		members := append([]string(nil), e.Set...)
		sort.Strings(members)
		if err := writeUint32(w, uint32(len(members))); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(w, m); err != nil {
				return err
			}
		}
		return nil
	case TypeZSet:
		if err := writeUint32(w, uint32(len(e.ZSet))); err != nil {
			return err
		}
		for _, zm := range e.ZSet {
			if err := writeString(w, zm.Member); err != nil {
				return err
			}
			if err := writeFloat64(w, zm.Score); err != nil {
				return err
			}
		}
		return nil
	case TypeVector:
		if err := writeUint32(w, uint32(len(e.Vector))); err != nil {
			return err
		}
		for _, ve := range e.Vector {
			if err := writeString(w, ve.ID); err != nil {
				return err
			}
			if err := writeUint32(w, uint32(len(ve.Vector))); err != nil {
				return err
			}
			for _, f := range ve.Vector {
				if err := writeFloat64(w, f); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return errors.New("persistence: unknown entry type")
	}
}

func LoadFromReader(r io.Reader) (Snapshot, error) {
	header := make([]byte, len(magicHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return Snapshot{}, err
	}
	if string(header) != magicHeader {
		return Snapshot{}, errors.New("persistence: invalid snapshot header")
	}

	lastSave, err := readInt64(r)
	if err != nil {
		return Snapshot{}, err
	}
	lastChanges, err := readInt64(r)
	if err != nil {
		return Snapshot{}, err
	}

	numDBs, err := readUint32(r)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		LastSaveUnixMs:  lastSave,
		LastSaveChanges: lastChanges,
		Databases:       make(map[int][]Entry, numDBs),
	}

	for i := uint32(0); i < numDBs; i++ {
		id, err := readUint32(r)
		if err != nil {
			return Snapshot{}, err
		}
		count, err := readUint32(r)
		if err != nil {
			return Snapshot{}, err
		}
		entries := make([]Entry, 0, count)
		for j := uint32(0); j < count; j++ {
			e, err := readEntry(r)
			if err != nil {
				return Snapshot{}, err
			}
			entries = append(entries, e)
		}
		snap.Databases[int(id)] = entries
	}

	return snap, nil
}

func readEntry(r io.Reader) (Entry, error) {
	typ, err := readUint8(r)
	if err != nil {
		return Entry{}, err
	}
	key, err := readString(r)
	if err != nil {
		return Entry{}, err
	}
	expireAt, err := readInt64(r)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Key: key, Type: EntryType(typ), ExpireAtUnixMs: expireAt}

	switch e.Type {
	case TypeString:
		b, err := readBytes(r)
		if err != nil {
			return Entry{}, err
		}
		e.String = b
	case TypeList:
		cnt, err := readUint32(r)
		if err != nil {
			return Entry{}, err
		}
		e.List = make([][]byte, 0, cnt)
		for j := uint32(0); j < cnt; j++ {
			b, err := readBytes(r)
			if err != nil {
				return Entry{}, err
			}
			e.List = append(e.List, b)
		}
	case TypeHash:
		cnt, err := readUint32(r)
		if err != nil {
			return Entry{}, err
		}
		e.Hash = make(map[string][]byte, cnt)
		for j := uint32(0); j < cnt; j++ {
			field, err := readString(r)
			if err != nil {
				return Entry{}, err
			}
			val, err := readBytes(r)
			if err != nil {
				return Entry{}, err
			}
			e.Hash[field] = val
		}
	case TypeSet:
		cnt, err := readUint32(r)
		if err != nil {
			return Entry{}, err
		}
		e.Set = make([]string, 0, cnt)
		for j := uint32(0); j < cnt; j++ {
			m, err := readString(r)
			if err != nil {
				return Entry{}, err
			}
			e.Set = append(e.Set, m)
		}
	case TypeZSet:
		cnt, err := readUint32(r)
		if err != nil {
			return Entry{}, err
		}
		e.ZSet = make([]store.ZMember, 0, cnt)
		for j := uint32(0); j < cnt; j++ {
			member, err := readString(r)
			if err != nil {
				return Entry{}, err
			}
			score, err := readFloat64(r)
			if err != nil {
				return Entry{}, err
			}
			e.ZSet = append(e.ZSet, store.ZMember{Member: member, Score: score})
		}
	case TypeVector:
		cnt, err := readUint32(r)
		if err != nil {
			return Entry{}, err
		}
		e.Vector = make([]store.VecEntry, 0, cnt)
		for j := uint32(0); j < cnt; j++ {
			id, err := readString(r)
			if err != nil {
				return Entry{}, err
			}
			dim, err := readUint32(r)
			if err != nil {
				return Entry{}, err
			}
			vec := make([]float64, dim)
			for k := uint32(0); k < dim; k++ {
				f, err := readFloat64(r)
				if err != nil {
					return Entry{}, err
				}
				vec[k] = f
			}
			e.Vector = append(e.Vector, store.VecEntry{ID: id, Vector: vec})
		}
	default:
		return Entry{}, errors.New("persistence: unknown entry type")
	}

	return e, nil
}

func writeUint8(w io.Writer, v uint8) error {
	var b [1]byte
	b[0] = v
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeInt64(w io.Writer, v int64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	_, err := w.Write(b[:])
	return err
}

func writeFloat64(w io.Writer, v float64) error {
	return writeInt64(w, int64(math.Float64bits(v)))
}

func readUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	_, err := io.ReadFull(r, b[:])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	var b [8]byte
	_, err := io.ReadFull(r, b[:])
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func readFloat64(r io.Reader) (float64, error) {
	n, err := readInt64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(n)), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeBytes(w io.Writer, b []byte) error {
	if b == nil {
		return writeUint32(w, 0)
	}
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
