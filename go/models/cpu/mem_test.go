package cpu

import (
	"bytes"
	"encoding/binary"
	"testing"
)

var asdf = []byte("asdf")

func TestMemRange(t *testing.T) {
	mem := NewMem(16, binary.LittleEndian)
	if err := mem.MemMapProt(0x1000, 0x1000, PROT_READ); err != nil {
		t.Fatal("failed to map memory:", err)
	}
	if err := mem.MemMapProt(0xf000, 0x2000, PROT_READ); err == nil {
		t.Fatal("mapped memory outside range")
	}
	if err := mem.MemWrite(0x2000, asdf); err == nil {
		t.Error("write succeeded above mapped memory")
	}
	// unaligned requests round out to whole pages
	if err := mem.MemMapProt(0x3010, 0x10, PROT_READ); err != nil {
		t.Fatal("failed to map unaligned memory:", err)
	}
	if pg := mem.Mappings().Find(0x3fff); pg == nil || pg.Addr != 0x3000 {
		t.Errorf("unaligned map was not page aligned: %v", mem.Mappings())
	}
}

func TestMem(t *testing.T) {
	mappings := [][]uint64{
		{0x1000, 0x1000, PROT_READ | PROT_WRITE | PROT_EXEC},
		{0x2000, 0x1000, PROT_READ},
		{0x3000, 0x1000, PROT_READ | PROT_WRITE},
		{0x4000, 0x1000, PROT_READ | PROT_EXEC},
		{0x5000, 0x1000, PROT_EXEC},
	}

	mem := NewMem(32, binary.LittleEndian)
	for _, v := range mappings {
		if err := mem.MemMapProt(v[0], v[1], int(v[2])); err != nil {
			t.Fatalf("failed to map memory (%#x, %#x, %d): %v", v[0], v[1], v[2], err)
		}
	}
	if err := mem.MemWrite(0, asdf); err == nil {
		t.Error("write succeeded below mapped memory")
	}
	if err := mem.MemWrite(0x6000, asdf); err == nil {
		t.Error("write succeeded above mapped memory")
	}
	// unchecked writes ignore protections
	for _, v := range mappings {
		if err := mem.MemWrite(v[0], asdf); err != nil {
			t.Error("write failed inside mapped memory")
		}
	}
	for _, v := range mappings {
		if tmp, err := mem.MemRead(v[0], uint64(len(asdf))); err != nil {
			t.Error("read failed inside mapped memory")
		} else if !bytes.Equal(tmp, asdf) {
			t.Error("read returned bad value")
		}
	}
	tmp := make([]byte, 0x1000)
	for _, v := range mappings {
		if _, err := mem.ReadProt(v[0], v[1], int(v[2])); err != nil {
			t.Errorf("valid read failed on (%#x, %#x, %d): %v", v[0], v[1], v[2], err)
		}
		if _, err := mem.ReadProt(v[0], v[1], 8); err == nil {
			t.Errorf("invalid read succeeded on (%#x, %#x, %d)", v[0], v[1], v[2])
		}
		if err := mem.WriteProt(v[0], tmp, int(v[2])); err != nil {
			t.Errorf("valid write failed on (%#x, %#x, %d): %v", v[0], v[1], v[2], err)
		}
		if err := mem.WriteProt(v[0], tmp, 8); err == nil {
			t.Errorf("invalid write succeeded on (%#x, %#x, %d)", v[0], v[1], v[2])
		}
	}
	// a write spanning into a read-only page must not touch the writable half
	if err := mem.MemWrite(0x3ffe, []byte{1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteProt(0x2ffe, []byte{9, 9, 9, 9}, PROT_WRITE); err == nil {
		t.Error("write into read-only page succeeded")
	}
	if err := mem.WriteProt(0x3ffe, []byte{9, 9, 9, 9}, PROT_WRITE); err == nil {
		t.Error("write spanning read-only page succeeded")
	}
	if p, _ := mem.MemRead(0x3ffe, 2); !bytes.Equal(p, []byte{1, 1}) {
		t.Errorf("failed write had side effects: %v", p)
	}
}

func TestMemFaultHook(t *testing.T) {
	mem := NewMem(32, binary.LittleEndian)
	mem.MemMapProt(0x1000, 0x1000, PROT_READ)

	var faults []int
	hh, err := mem.HookAdd(HOOK_MEM_ERR, func(_ Memory, access int, addr uint64, size int, val int64) bool {
		faults = append(faults, access)
		return true
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	mem.ReadProt(0x8000, 1, PROT_READ)
	mem.WriteProt(0x1000, []byte{1}, PROT_WRITE)
	if _, err := mem.ReadProt(0x1000, 1, PROT_READ); err != nil {
		t.Fatal(err)
	}
	if len(faults) != 2 || faults[0] != MEM_READ_UNMAPPED || faults[1] != MEM_WRITE_PROT {
		t.Fatalf("unexpected fault list: %v", faults)
	}
	if err := mem.HookDel(hh); err != nil {
		t.Fatal(err)
	}
	mem.ReadProt(0x8000, 1, PROT_READ)
	if len(faults) != 2 {
		t.Fatal("fault hook ran after HookDel")
	}
	if _, err := mem.HookAdd(HOOK_INTR, func() {}, 1, 0); err == nil {
		t.Error("HookAdd accepted an interrupt hook")
	}
}

func TestMemUint(t *testing.T) {
	rawtest := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ltable := map[int]uint64{
		1: 0x1,
		2: 0x0201,
		4: 0x04030201,
		8: 0x0807060504030201,
	}
	btable := map[int]uint64{
		1: 0x1,
		2: 0x0102,
		4: 0x01020304,
		8: 0x0102030405060708,
	}

	meml := NewMem(32, binary.LittleEndian)
	memb := NewMem(32, binary.BigEndian)

	if err := meml.MemMapProt(0x1000, 0x1000, PROT_READ|PROT_WRITE); err != nil {
		t.Fatal("failed to map memory:", err)
	}
	if err := memb.MemMapProt(0x1000, 0x1000, PROT_READ|PROT_WRITE); err != nil {
		t.Fatal("failed to map memory:", err)
	}
	meml.MemWrite(0x1000, rawtest)
	memb.MemWrite(0x1000, rawtest)
	for size, val := range ltable {
		if n, err := meml.ReadUint(0x1000, size, PROT_READ); err != nil {
			t.Error("failed to read uint:", err)
		} else if n != val {
			t.Error("inconsistent uint value:", n, val)
		}
	}
	for size, val := range btable {
		if n, err := memb.ReadUint(0x1000, size, PROT_READ); err != nil {
			t.Error("failed to read uint:", err)
		} else if n != val {
			t.Error("inconsistent uint value:", n, val)
		}
	}
	for size, val := range ltable {
		if err := meml.WriteUint(0x1000, size, PROT_WRITE, val); err != nil {
			t.Error("failed to write uint:", err)
		}
		if n, err := meml.ReadUint(0x1000, size, PROT_READ); err != nil {
			t.Error("failed to read uint:", err)
		} else if n != val {
			t.Error("inconsistent uint value:", n, val)
		}
	}
	if _, err := meml.ReadUint(0x1000, 3, PROT_READ); err == nil {
		t.Error("ReadUint accepted size 3")
	}
}
