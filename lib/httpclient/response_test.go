package httpclient

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

func TestResponseStatusPredicates(t *testing.T) {
	tests := []struct {
		code                                    int
		success, redirect, clientErr, serverErr bool
	}{
		{200, true, false, false, false},
		{204, true, false, false, false},
		{301, false, true, false, false},
		{404, false, false, true, false},
		{499, false, false, true, false},
		{500, false, false, false, true},
		{503, false, false, false, true},
	}

	for _, tc := range tests {
		r := &Response{StatusCode: tc.code}
		assert.Equal(t, tc.success, r.Success(), "Success(%d)", tc.code)
		assert.Equal(t, tc.redirect, r.Redirect(), "Redirect(%d)", tc.code)
		assert.Equal(t, tc.clientErr, r.ClientError(), "ClientError(%d)", tc.code)
		assert.Equal(t, tc.serverErr, r.ServerError(), "ServerError(%d)", tc.code)
	}

	assert.True(t, (&Response{StatusCode: 401}).Unauthenticated())
	assert.True(t, (&Response{StatusCode: 403}).Unauthorized())
	assert.True(t, (&Response{StatusCode: 404}).NotFound())
}

func TestResponseRaise(t *testing.T) {
	tests := []struct {
		code    int
		want    error
		message string
	}{
		{401, apperrors.ErrAuthentication, "Unauthenticated"},
		{403, apperrors.ErrAuthorization, "Forbidden"},
		{404, apperrors.ErrNotFound, "Not Found"},
		{409, apperrors.ErrClientError, "Client Error"},
		{500, apperrors.ErrServerError, "Server Error"},
		{502, apperrors.ErrBadGateway, "Bad Gateway"},
		{503, apperrors.ErrServiceUnavailable, "Service Unavailable"},
		{504, apperrors.ErrGatewayTimeout, "Gateway Timeout"},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			r := &Response{StatusCode: tc.code, StatusText: http.StatusText(tc.code)}
			err := r.Raise()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))

			var respErr *ResponseError
			require.True(t, errors.As(err, &respErr))
			assert.Equal(t, tc.message, respErr.Message)
			assert.Same(t, r, respErr.Response)
		})
	}

	assert.NoError(t, (&Response{StatusCode: 200}).Raise())
	assert.NoError(t, (&Response{StatusCode: 302}).Raise())
}

func TestResponseRaiseFamilies(t *testing.T) {
	assert.True(t, apperrors.IsResponse((&Response{StatusCode: 404}).Raise()))
	assert.True(t, errors.Is((&Response{StatusCode: 404}).Raise(), apperrors.ErrClientError))
	assert.True(t, errors.Is((&Response{StatusCode: 502}).Raise(), apperrors.ErrServerError))
}

func TestResponseContentTypes(t *testing.T) {
	r := &Response{Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}}, Body: []byte(`{"a":1}`)}
	assert.True(t, r.IsJSON())
	assert.False(t, r.IsXML())

	var v struct{ A int }
	require.NoError(t, r.JSON(&v))
	assert.Equal(t, 1, v.A)

	x := &Response{Header: http.Header{"Content-Type": {"text/xml"}}}
	assert.True(t, x.IsXML())

	bad := &Response{Body: []byte("not json")}
	assert.Error(t, bad.JSON(&v))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Teapot Time", statusText(&http.Response{StatusCode: 418, Status: "418 Teapot Time"}))
	assert.Equal(t, "Not Found", statusText(&http.Response{StatusCode: 404, Status: "404"}))
}
