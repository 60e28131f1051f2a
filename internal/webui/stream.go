package webui

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	"github.com/marcan/kinlarm/internal/frame"
)

// mimeBoundary matches the original preview's multipart boundary tag; kept
// as a nod to it even though its value is no longer secret to anyone.
const mimeBoundary = "kinlarmframe"

func (s *Server) serveVideo(w http.ResponseWriter, r *http.Request) {
	sub, err := s.hub.SubscribeVideo(15)
	if err != nil {
		http.Error(w, "video stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Connection", "close")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+mimeBoundary)
	w.WriteHeader(http.StatusOK)

	for {
		vf, _, err := sub.Next()
		if err != nil {
			return
		}
		img := renderVideo(vf)
		rgba := stampStateLabel(img, s.controller.Current().String())
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: 75}); err != nil {
			continue
		}
		if !writeMultipartFrame(w, flusher, buf.Bytes()) {
			return
		}
		if r.Context().Err() != nil {
			return
		}
	}
}

func (s *Server) serveDepth(w http.ResponseWriter, r *http.Request) {
	sub, err := s.hub.SubscribeDepth(15)
	if err != nil {
		http.Error(w, "depth stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Connection", "close")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+mimeBoundary)
	w.WriteHeader(http.StatusOK)

	for {
		df, _, err := sub.Next()
		if err != nil {
			return
		}
		rgba := renderDepthLabeled(df, s.controller.Current().String())
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: 75}); err != nil {
			continue
		}
		if !writeMultipartFrame(w, flusher, buf.Bytes()) {
			return
		}
		if r.Context().Err() != nil {
			return
		}
	}
}

func renderDepthLabeled(df *frame.DepthFrame, label string) *image.RGBA {
	return stampStateLabel(renderDepth(df), label)
}

func writeMultipartFrame(w http.ResponseWriter, flusher http.Flusher, data []byte) bool {
	if _, err := fmt.Fprintf(w, "--%s\r\n", mimeBoundary); err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
