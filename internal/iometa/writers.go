package iometa

import "io"

// CountingWriter wraps an io.Writer and keeps track of the number of bytes
// written through it.
type CountingWriter struct {
	Writer       io.Writer
	bytesWritten int
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	written, err := c.Writer.Write(p)
	c.bytesWritten += written

	return written, err
}

func (c *CountingWriter) BytesWritten() int {
	return c.bytesWritten
}
