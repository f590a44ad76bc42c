package convert

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const (
	tgaTypeRLETrueColor = 10
	tgaOriginTopLeft    = 0x20
	tgaMaxPacket        = 128
)

var tgaFooterSignature = []byte("TRUEVISION-XFILE.\x00")

// encodeTGA 写出行程编码的 TGA。源图有 alpha 或透明调色板项时写 32 位，否则写 24 位。
func encodeTGA(w io.Writer, buf *Buffer, _ Target) error {
	if buf.Width > 0xFFFF || buf.Height > 0xFFFF {
		return fmt.Errorf("tga: image too large %dx%d", buf.Width, buf.Height)
	}

	withAlpha := buf.HasAlpha()
	depth, bpp := byte(24), 3
	descriptor := byte(tgaOriginTopLeft)
	if withAlpha {
		depth, bpp = 32, 4
		descriptor |= 8
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, 18)
	header[2] = tgaTypeRLETrueColor
	binary.LittleEndian.PutUint16(header[12:], uint16(buf.Width))
	binary.LittleEndian.PutUint16(header[14:], uint16(buf.Height))
	header[16] = depth
	header[17] = descriptor
	if _, err := bw.Write(header); err != nil {
		return err
	}

	src := imaging.Clone(buf.Image)
	row := make([]byte, buf.Width*bpp)
	for y := 0; y < buf.Height; y++ {
		line := src.Pix[y*src.Stride : y*src.Stride+buf.Width*4]
		for x := 0; x < buf.Width; x++ {
			s := line[x*4 : x*4+4]
			d := row[x*bpp:]
			d[0], d[1], d[2] = s[2], s[1], s[0]
			if withAlpha {
				d[3] = s[3]
			}
		}
		if err := writeRLERow(bw, row, bpp); err != nil {
			return err
		}
	}

	// TGA 2.0 footer，无扩展区和开发者区
	footer := make([]byte, 8, 8+len(tgaFooterSignature))
	footer = append(footer, tgaFooterSignature...)
	if _, err := bw.Write(footer); err != nil {
		return err
	}
	return bw.Flush()
}

// writeRLERow 对一行像素编码，数据包不跨行。
func writeRLERow(w *bufio.Writer, row []byte, bpp int) error {
	n := len(row) / bpp
	px := func(i int) []byte { return row[i*bpp : i*bpp+bpp] }

	for i := 0; i < n; {
		run := 1
		for i+run < n && run < tgaMaxPacket && bytes.Equal(px(i), px(i+run)) {
			run++
		}
		if run > 1 {
			if err := w.WriteByte(byte(0x80 | (run - 1))); err != nil {
				return err
			}
			if _, err := w.Write(px(i)); err != nil {
				return err
			}
			i += run
			continue
		}

		// 原始包：直到出现两个相同的相邻像素为止
		start := i
		count := 0
		for i < n && count < tgaMaxPacket {
			if i+1 < n && bytes.Equal(px(i), px(i+1)) {
				break
			}
			i++
			count++
		}
		if err := w.WriteByte(byte(count - 1)); err != nil {
			return err
		}
		if _, err := w.Write(row[start*bpp : (start+count)*bpp]); err != nil {
			return err
		}
	}
	return nil
}
