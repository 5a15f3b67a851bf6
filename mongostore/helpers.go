package mongostore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"

	"github.com/hishelgo/hishel/herrors"
)

func readAllAndClose(body io.ReadCloser) ([]byte, error) {
	defer body.Close()
	return io.ReadAll(body)
}

func newNopBody(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}

func encodeHeader(h http.Header) ([]byte, error) {
	if h == nil {
		h = make(http.Header)
	}
	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: encoding header: %v", herrors.ErrStorage, err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func decodeHeader(raw []byte) (http.Header, error) {
	if len(raw) == 0 {
		return make(http.Header), nil
	}
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decoding header: %v", herrors.ErrStorage, err)
	}
	return http.Header(mimeHeader), nil
}
