package array

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/spectral/utils"
)

func seq(shape Shape) *Array {
	a := Zeros(shape, Complex128)
	for i := range a.Data {
		a.Data[i] = complex(float64(i), 0)
	}
	return a
}

func TestLines(t *testing.T) {
	a := seq(Shape{2, 3, 4})
	offs, stride := a.Lines(1)
	if stride != 4 {
		t.Fatalf("stride %d", stride)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 12, 13, 14, 15}, offs); diff != "" {
		t.Fatalf("offsets (-want +got):\n%s", diff)
	}
	line := make([]complex128, 3)
	a.GetLine(offs[5], stride, line)
	if line[0] != 13 || line[1] != 17 || line[2] != 21 {
		t.Fatalf("line %v", line)
	}
	offs, stride = a.Lines(2)
	if stride != 1 || len(offs) != 6 || offs[5] != 20 {
		t.Fatalf("last axis lines %v %d", offs, stride)
	}
}

func TestAlongAxis(t *testing.T) {
	a := seq(Shape{3, 4})
	row := a.GetAlongAxis(0, 2)
	if diff := cmp.Diff(Shape{1, 4}, row.Shape); diff != "" {
		t.Fatal(diff)
	}
	if row.Data[0] != 8 || row.Data[3] != 11 {
		t.Fatalf("row %v", row.Data)
	}
	col := FromComplex(Shape{3, 1}, []complex128{-1, -2, -3})
	if err := a.SetAlongAxis(1, 0, col); err != nil {
		t.Fatal(err)
	}
	if a.At(2, 0) != -3 || a.At(2, 1) != 9 {
		t.Fatalf("set along axis: %v", a.Data)
	}
	a.FillAlongAxis(0, 1, 7)
	for j := 0; j < 4; j++ {
		if a.At(1, j) != 7 {
			t.Fatalf("fill along axis: %v", a.Data)
		}
	}
	err := a.SetAlongAxis(1, 0, FromComplex(Shape{2, 1}, []complex128{0, 0}))
	if !errors.Is(err, utils.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestPackUnpack(t *testing.T) {
	a := seq(Shape{4, 5})
	b := Block{Start: []int{1, 2}, Count: Shape{2, 3}}
	buf := a.Pack(b)
	if diff := cmp.Diff([]complex128{7, 8, 9, 12, 13, 14}, buf); diff != "" {
		t.Fatal(diff)
	}
	z := a.Like()
	z.Unpack(b, buf)
	if z.At(2, 4) != 14 || z.At(0, 0) != 0 {
		t.Fatalf("unpack %v", z.Data)
	}
	sub := a.SubArray([]Range{{1, 3}, {2, 5}})
	if diff := cmp.Diff(buf, sub.Data); diff != "" {
		t.Fatal(diff)
	}
}

func TestBroadcast(t *testing.T) {
	f := FromReal(Shape{1, 3}, []float64{1, 2, 3})
	a := seq(Shape{2, 3})
	if err := a.MulBroadcast(f); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]complex128{0, 2, 6, 3, 8, 15}, a.Data); diff != "" {
		t.Fatal(diff)
	}
	full, err := BroadcastTo(f, Shape{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if full.At(1, 2) != 3 {
		t.Fatalf("broadcast %v", full.Data)
	}
	if _, err = BroadcastTo(f, Shape{2, 4}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRealArraysStayReal(t *testing.T) {
	a := Zeros(Shape{2}, Float64)
	if err := a.CopyFrom(FromComplex(Shape{2}, []complex128{1 + 2i, 3 - 1i})); err != nil {
		t.Fatal(err)
	}
	if a.Data[0] != 1 || a.Data[1] != 3 {
		t.Fatalf("imaginary part kept: %v", a.Data)
	}
	a.Set(5i, 0)
	if a.Data[0] != 0 {
		t.Fatalf("Set kept imaginary part: %v", a.Data)
	}
	if err := a.CopyFrom(Zeros(Shape{3}, Float64)); !errors.Is(err, utils.ErrShapeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
