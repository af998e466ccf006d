package ocr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "car.jpg", header.Filename)
		assert.Equal(t, "jpeg-bytes", string(data))
		_, _ = w.Write([]byte(`{"licensePlate":"kaa 123a"}`))
	}))
	defer srv.Close()

	plate, err := NewClient(srv.URL, time.Second).ExtractPlate(context.Background(), "/tmp/car.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "KAA123A", plate)
}

func TestExtractPlateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/empty") {
			_, _ = w.Write([]byte(`{"licensePlate":""}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"Processing failed"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ExtractPlate(context.Background(), "car.jpg", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Processing failed")

	_, err = NewClient(srv.URL+"/empty", time.Second).ExtractPlate(context.Background(), "car.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNoPlate)
}
