package dropbox

import (
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

// Conn is an authenticated connection to the dropbox. Only one transfer uses a Conn at a time.
type Conn interface {
	CurrentDir() (string, error)
	Size(path string) (int64, error)
	MakeDir(path string) error
	Store(path string, r io.Reader) error
	Read(path string) ([]byte, error)
	Rename(from string, to string) error
	Close() error
}

type Dialer func(host string, port int, username string, password string) (Conn, error)

// DialFTPS connects with explicit TLS. Transfers are binary and passive with a private data channel.
func DialFTPS(timeout time.Duration) Dialer {
	return func(host string, port int, username string, password string) (Conn, error) {
		c, err := ftp.Dial(net.JoinHostPort(host, strconv.Itoa(port)),
			ftp.DialWithExplicitTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}),
			ftp.DialWithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		if err := c.Login(username, password); err != nil {
			_ = c.Quit()
			return nil, err
		}
		return &ftpConn{conn: c}, nil
	}
}

type ftpConn struct {
	conn *ftp.ServerConn
}

func (f *ftpConn) CurrentDir() (string, error) {
	return f.conn.CurrentDir()
}

func (f *ftpConn) Size(path string) (int64, error) {
	return f.conn.FileSize(path)
}

func (f *ftpConn) MakeDir(path string) error {
	return f.conn.MakeDir(path)
}

func (f *ftpConn) Store(path string, r io.Reader) error {
	return f.conn.Stor(path, r)
}

func (f *ftpConn) Read(path string) ([]byte, error) {
	r, err := f.conn.Retr(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close()
	}()
	return io.ReadAll(r)
}

func (f *ftpConn) Rename(from string, to string) error {
	return f.conn.Rename(from, to)
}

// Close logs out and closes the control connection.
func (f *ftpConn) Close() error {
	return f.conn.Quit()
}
