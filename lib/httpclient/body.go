package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

// encodeBody renders the request body. It returns the encoded bytes and the
// Content-Type to send, empty when the header should be left as set.
func (r *Request) encodeBody(method string) ([]byte, string, error) {
	if method == "GET" || method == "HEAD" {
		return nil, "", nil
	}

	switch r.bodyType {
	case BodyNone:
		return nil, "", nil

	case BodyRaw:
		b, err := rawBytes(r.body)
		return b, "", err

	case BodyJSON:
		if r.body == nil {
			return nil, "", nil
		}
		if b, ok := r.body.([]byte); ok {
			return b, "", nil
		}
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, "", fmt.Errorf("encoding JSON body: %w", err)
		}
		return b, "", nil

	case BodyForm:
		if r.body == nil {
			return nil, "", nil
		}
		values, err := formValues(r.body)
		if err != nil {
			return nil, "", err
		}
		return []byte(values.Encode()), "", nil

	case BodyMultipart:
		return r.encodeMultipart()

	default:
		return nil, "", fmt.Errorf("invalid body type %d: %w", r.bodyType, apperrors.ErrInvalidArgument)
	}
}

func rawBytes(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("raw body must be []byte, string or io.Reader, got %T: %w", body, apperrors.ErrInvalidArgument)
	}
}

// formValues converts url.Values or a string-keyed map into form values.
func formValues(body any) (url.Values, error) {
	switch b := body.(type) {
	case url.Values:
		return b, nil
	case map[string]string:
		values := make(url.Values, len(b))
		for k, v := range b {
			values.Set(k, v)
		}
		return values, nil
	case map[string]any:
		values := make(url.Values, len(b))
		for k, v := range b {
			values.Set(k, fmt.Sprint(v))
		}
		return values, nil
	default:
		return nil, fmt.Errorf("form body must be url.Values or a string-keyed map, got %T: %w", body, apperrors.ErrInvalidArgument)
	}
}

func (r *Request) encodeMultipart() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if r.body != nil {
		values, err := formValues(r.body)
		if err != nil {
			return nil, "", err
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range values[k] {
				if err := w.WriteField(k, v); err != nil {
					return nil, "", err
				}
			}
		}
	}

	for _, f := range r.files {
		filename := f.filename
		if filename == "" {
			filename = f.field
		}
		contentType := f.contentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.reader); err != nil {
			return nil, "", fmt.Errorf("reading file %q: %w", f.field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
