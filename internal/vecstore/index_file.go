package vecstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// 索引文件格式：
//   magic uint32 | version uint32 | dimension uint32 | count uint32 | count*dimension float32 (LE)
const (
	indexMagic   uint32 = 0x44565831 // "DVX1"
	indexVersion uint32 = 1
)

var (
	// ErrInvalidIndexFile 索引文件无法解析
	ErrInvalidIndexFile = errors.New("invalid index file")
)

// WriteIndexFile 将索引写入temp文件后原子rename到目标路径
func WriteIndexFile(path string, idx *FlatIndex) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := writeIndex(tmp, idx); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func writeIndex(w io.Writer, idx *FlatIndex) error {
	bw := bufio.NewWriter(w)
	header := []uint32{indexMagic, indexVersion, uint32(idx.dim), uint32(idx.Size())}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, idx.data); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadIndexFile 从磁盘加载索引，文件维度必须与期望一致
func ReadIndexFile(path string, expectDim int) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(br, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidIndexFile)
		}
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrInvalidIndexFile, magic)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidIndexFile, version)
	}
	if int(dim) != expectDim {
		return nil, fmt.Errorf("%w: dimension %d, expected %d", ErrInvalidIndexFile, dim, expectDim)
	}

	// 先校验count与文件实际大小一致，再分配内存，防止被损坏的头部撑爆
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	const headerSize = 16
	want := headerSize + int64(count)*int64(dim)*4
	if info.Size() != want {
		return nil, fmt.Errorf("%w: count %d does not match file size %d", ErrInvalidIndexFile, count, info.Size())
	}

	data := make([]float32, int(count)*int(dim))
	if err := binary.Read(br, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("%w: truncated vector data", ErrInvalidIndexFile)
	}
	return &FlatIndex{dim: int(dim), data: data}, nil
}
