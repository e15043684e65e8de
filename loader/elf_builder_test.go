package loader_test

import (
	"bytes"
	"encoding/binary"
	"os"
)

type testSegment struct {
	addr uint64
	data []byte
}

type testSymbol struct {
	name  string
	value uint64
	info  byte
	code  bool
}

const (
	symFunc   = 0x12 // STB_GLOBAL, STT_FUNC
	symNoType = 0x10 // STB_GLOBAL, STT_NOTYPE
	symObject = 0x11 // STB_GLOBAL, STT_OBJECT
)

// writeTestELF builds a little-endian ELF64 executable. Sections are null,
// .text, .data, .symtab, .strtab and .shstrtab; the first segment backs
// .text.
func writeTestELF(path string, entry uint64, segs []testSegment, syms []testSymbol) {
	le := binary.LittleEndian
	const (
		ehSize = 64
		phSize = 56
		shSize = 64
	)

	dataOff := uint64(ehSize + phSize*len(segs))
	body := &bytes.Buffer{}
	offsets := make([]uint64, len(segs))
	for i, s := range segs {
		offsets[i] = dataOff + uint64(body.Len())
		body.Write(s.data)
	}

	strtab := []byte{0}
	symtab := make([]byte, 24)
	for _, s := range syms {
		entry := make([]byte, 24)
		le.PutUint32(entry[0:], uint32(len(strtab)))
		entry[4] = s.info
		shndx := uint16(2)
		if s.code {
			shndx = 1
		}
		le.PutUint16(entry[6:], shndx)
		le.PutUint64(entry[8:], s.value)
		symtab = append(symtab, entry...)
		strtab = append(append(strtab, s.name...), 0)
	}

	names := []string{"", ".text", ".data", ".symtab", ".strtab", ".shstrtab"}
	shstrtab := []byte{}
	nameOff := make([]uint32, len(names))
	for i, n := range names {
		nameOff[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, n...), 0)
	}

	symtabOff := dataOff + uint64(body.Len())
	body.Write(symtab)
	strtabOff := dataOff + uint64(body.Len())
	body.Write(strtab)
	shstrtabOff := dataOff + uint64(body.Len())
	body.Write(shstrtab)
	shOff := dataOff + uint64(body.Len())

	hdr := make([]byte, ehSize)
	copy(hdr, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	le.PutUint16(hdr[16:], 2)   // ET_EXEC
	le.PutUint16(hdr[18:], 243) // EM_RISCV
	le.PutUint32(hdr[20:], 1)
	le.PutUint64(hdr[24:], entry)
	le.PutUint64(hdr[32:], ehSize)
	le.PutUint64(hdr[40:], shOff)
	le.PutUint16(hdr[52:], ehSize)
	le.PutUint16(hdr[54:], phSize)
	le.PutUint16(hdr[56:], uint16(len(segs)))
	le.PutUint16(hdr[58:], shSize)
	le.PutUint16(hdr[60:], uint16(len(names)))
	le.PutUint16(hdr[62:], uint16(len(names)-1))

	out := &bytes.Buffer{}
	out.Write(hdr)
	for i, s := range segs {
		ph := make([]byte, phSize)
		le.PutUint32(ph[0:], 1)   // PT_LOAD
		le.PutUint32(ph[4:], 0x7) // RWX
		le.PutUint64(ph[8:], offsets[i])
		le.PutUint64(ph[16:], s.addr)
		le.PutUint64(ph[24:], s.addr)
		le.PutUint64(ph[32:], uint64(len(s.data)))
		le.PutUint64(ph[40:], uint64(len(s.data)))
		le.PutUint64(ph[48:], 0x1000)
		out.Write(ph)
	}
	out.Write(body.Bytes())

	section := func(name uint32, typ uint32, flags, addr, off, size uint64, link, info uint32, entsize uint64) {
		sh := make([]byte, shSize)
		le.PutUint32(sh[0:], name)
		le.PutUint32(sh[4:], typ)
		le.PutUint64(sh[8:], flags)
		le.PutUint64(sh[16:], addr)
		le.PutUint64(sh[24:], off)
		le.PutUint64(sh[32:], size)
		le.PutUint32(sh[40:], link)
		le.PutUint32(sh[44:], info)
		le.PutUint64(sh[48:], 1)
		le.PutUint64(sh[56:], entsize)
		out.Write(sh)
	}

	var textAddr, textOff, textSize uint64
	if len(segs) > 0 {
		textAddr, textOff, textSize = segs[0].addr, offsets[0], uint64(len(segs[0].data))
	}

	section(0, 0, 0, 0, 0, 0, 0, 0, 0)
	section(nameOff[1], 1, 0x6, textAddr, textOff, textSize, 0, 0, 0) // ALLOC|EXECINSTR
	section(nameOff[2], 1, 0x3, 0, 0, 0, 0, 0, 0)                     // WRITE|ALLOC
	section(nameOff[3], 2, 0, 0, symtabOff, uint64(len(symtab)), 4, 1, 24)
	section(nameOff[4], 3, 0, 0, strtabOff, uint64(len(strtab)), 0, 0, 0)
	section(nameOff[5], 3, 0, 0, shstrtabOff, uint64(len(shstrtab)), 0, 0, 0)

	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		panic(err)
	}
}

// writeHeaderOnlyELF writes an ELF header with the given class and data
// encoding and nothing else.
func writeHeaderOnlyELF(path string, class, data byte) {
	var order binary.ByteOrder = binary.LittleEndian
	if data == 2 {
		order = binary.BigEndian
	}

	size := 64
	if class == 1 {
		size = 52
	}
	hdr := make([]byte, size)
	copy(hdr, []byte{0x7f, 'E', 'L', 'F', class, data, 1})
	order.PutUint16(hdr[16:], 2)
	order.PutUint16(hdr[18:], 243)
	order.PutUint32(hdr[20:], 1)
	if class == 1 {
		order.PutUint16(hdr[40:], 52)
	} else {
		order.PutUint16(hdr[52:], 64)
	}

	if err := os.WriteFile(path, hdr, 0644); err != nil {
		panic(err)
	}
}
