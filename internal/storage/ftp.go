package storage

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	apperrors "dumpkeep/internal/errors"
)

// FTP stores artifacts on a plain FTP server. Connections are made lazily so
// a transient dial failure surfaces on the upload attempt, where the retry
// wrapper can deal with it, instead of at startup.
type FTP struct {
	client     *ftp.ServerConn
	remotePath string
	host       string
	user       *url.Userinfo
}

func NewFTP(u *url.URL) *FTP {
	host := u.Host
	if !strings.Contains(host, ":") {
		host = host + ":21"
	}
	return &FTP{
		remotePath: u.Path,
		host:       host,
		user:       u.User,
	}
}

func (s *FTP) connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	c, err := ftp.Dial(s.host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to connect to FTP server", "Check host reachability and the FTP port.")
	}

	user := s.user.Username()
	pass, _ := s.user.Password()
	if err := c.Login(user, pass); err != nil {
		c.Quit()
		return apperrors.Wrap(err, apperrors.TypeAuth, "FTP login rejected", "Verify the FTP username and password.")
	}

	s.client = c
	return nil
}

func (s *FTP) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := s.connect(ctx); err != nil {
		return "", err
	}

	target := path.Join(s.remotePath, name)
	if err := s.ensureDir(path.Dir(target)); err != nil {
		return "", err
	}

	if err := s.client.Stor(target, r); err != nil {
		// A dead control connection should be re-dialed on the next attempt.
		s.dropConn()
		return "", apperrors.Wrap(err, apperrors.TypeConnection, "FTP upload failed", "Check the connection and remote path permissions.")
	}
	return "ftp://" + s.host + target, nil
}

func (s *FTP) Ping(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.client.NoOp(); err != nil {
		s.dropConn()
		return apperrors.Wrap(err, apperrors.TypeConnection, "FTP connection lost", "Check host reachability.")
	}
	return nil
}

func (s *FTP) Location() string {
	return "ftp://" + s.host + s.remotePath
}

func (s *FTP) ensureDir(dir string) error {
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, part := range parts {
		current = path.Join(current, part)
		_ = s.client.MakeDir(current) // Ignore error if it already exists
	}
	return nil
}

func (s *FTP) dropConn() {
	if s.client != nil {
		_ = s.client.Quit()
		s.client = nil
	}
}

func (s *FTP) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Quit()
	s.client = nil
	return err
}
