package scan

import (
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

// readBody returns the decoded body as text. The content is decompressed
// when the transport left it encoded. A body longer than limit bytes gives
// ErrBodyTooLarge. Text is UTF-8 unless the Content-Type or a BOM names
// another charset; a <meta> declaration is honored only for bodies that are
// not valid UTF-8.
func readBody(resp *http.Response, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	r, err := decompress(resp)
	if err != nil {
		return "", err
	}

	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	if int64(len(raw)) > limit {
		return "", errors.Wrapf(ErrBodyTooLarge, "more than %d bytes", limit)
	}

	enc, _, certain := charset.DetermineEncoding(raw, resp.Header.Get("Content-Type"))
	if !certain && utf8.Valid(raw) {
		return string(raw), nil
	}

	if text, err := enc.NewDecoder().Bytes(raw); err == nil {
		return string(text), nil
	}

	return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
}

func decompress(resp *http.Response) (io.Reader, error) {
	if resp.Uncompressed {
		return resp.Body, nil
	}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "gzip body")
		}

		return zr, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "deflate body")
		}

		return zr, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
