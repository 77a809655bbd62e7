//go:build linux

package sendfile

import (
	"io"
	"net"
	"os"
	"testing"
)

func TestSendFileTransfersOverLoopbackTCP(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	f, err := os.CreateTemp(t.TempDir(), "sendfile-linux-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	server := <-accepted
	if server == nil {
		t.Fatal("Accept failed")
	}
	defer server.Close()

	var total int64
	for total < int64(len(payload)) {
		n, err := SendFile(server, f.Name(), total, int64(len(payload))-total)
		if err != nil {
			t.Fatalf("SendFile: %v", err)
		}
		total += n
	}

	buf := make([]byte, len(payload))
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != string(payload) {
		t.Errorf("got %q, want %q", buf, payload)
	}
}

func TestSendFileReturnsUnsupportedForNonRawConn(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	f, err := os.CreateTemp(t.TempDir(), "sendfile-unsupported-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	if _, err := SendFile(server, f.Name(), 0, 4); err != ErrUnsupported {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}
