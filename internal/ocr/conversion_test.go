package ocr

import (
	"bytes"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("toPNG", func() {
	It("returns PNG input unchanged", func() {
		data := testPNG()
		out, err := toPNG(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("converts JPEG to PNG", func() {
		out, err := toPNG(testJPEG(), "Image/JPEG; charset=binary")
		Expect(err).NotTo(HaveOccurred())
		_, err = png.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects unknown formats", func() {
		_, err := toPNG([]byte("not an image"), "image/webp")
		Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
	})

	It("reports a broken PDF", func() {
		_, err := toPNG([]byte("%PDF-1.4 garbage"), "application/pdf")
		Expect(err).To(MatchError(ContainSubstring("converting PDF to image")))
	})
})

var _ = Describe("HEIC detection", func() {
	It("recognizes the ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("ignores other files", func() {
		Expect(isHEICFormat(testPNG())).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})

	It("recognizes the MIME type", func() {
		Expect(isHEICMimeType(normalizeContentType(" image/HEIC "))).To(BeTrue())
		Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
	})
})

var _ = Describe("normalizeContentType", func() {
	It("defaults to JPEG", func() {
		Expect(normalizeContentType("")).To(Equal("image/jpeg"))
	})
})
