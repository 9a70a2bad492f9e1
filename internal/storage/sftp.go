package storage

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	apperrors "dumpkeep/internal/errors"
)

// SFTP stores artifacts on a remote host over SSH. Authentication tries an
// explicit password first, then the SSH agent, then common private keys.
type SFTP struct {
	client     *ssh.Client
	sftpClient *sftp.Client
	remotePath string
	host       string
	user       *url.Userinfo
}

func NewSFTP(u *url.URL) *SFTP {
	host := u.Host
	if !strings.Contains(host, ":") {
		host = host + ":22"
	}

	remotePath := strings.TrimPrefix(u.Path, "/./")

	return &SFTP{
		remotePath: remotePath,
		host:       host,
		user:       u.User,
	}
}

func (s *SFTP) connect() error {
	if s.sftpClient != nil {
		return nil
	}

	user := s.user.Username()
	pass, _ := s.user.Password()

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	if pass != "" {
		config.Auth = append(config.Auth, ssh.Password(pass))
	} else {
		if authSock := os.Getenv("SSH_AUTH_SOCK"); authSock != "" {
			if conn, err := net.Dial("unix", authSock); err == nil {
				ag := agent.NewClient(conn)
				if signers, err := ag.Signers(); err == nil && len(signers) > 0 {
					config.Auth = append(config.Auth, ssh.PublicKeysCallback(ag.Signers))
				}
			}
		}

		home, err := os.UserHomeDir()
		if err == nil {
			commonKeys := []string{"id_rsa", "id_ed25519", "id_ecdsa"}
			for _, k := range commonKeys {
				keyPath := filepath.Join(home, ".ssh", k)
				if key, err := os.ReadFile(keyPath); err == nil {
					if signer, err := ssh.ParsePrivateKey(key); err == nil {
						config.Auth = append(config.Auth, ssh.PublicKeys(signer))
					}
				}
			}
		}
	}

	if len(config.Auth) == 0 {
		return apperrors.New(apperrors.TypeAuth, "no supported SSH authentication methods found", "Ensure you have an SSH agent running or provide valid private keys/passwords.")
	}

	client, err := ssh.Dial("tcp", s.host, config)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") || strings.Contains(err.Error(), "handshake failed") {
			return apperrors.Wrap(err, apperrors.TypeAuth, "SSH authentication rejected", "Verify the SSH credentials or keys.")
		}
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to connect via SSH", "Check host reachability, SSH port, and credentials.")
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return apperrors.Wrap(err, apperrors.TypeInternal, "failed to create SFTP client", "Verify the SFTP subsystem is enabled on the remote host.")
	}

	s.client = client
	s.sftpClient = sftpClient
	return nil
}

func (s *SFTP) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.connect(); err != nil {
		return "", err
	}

	target := path.Join(s.remotePath, name)
	if err := s.sftpClient.MkdirAll(path.Dir(target)); err != nil {
		s.dropConn()
		return "", apperrors.Wrap(err, apperrors.TypeResource, "failed to create remote directory "+path.Dir(target), "Check permissions on the remote path.")
	}

	f, err := s.sftpClient.Create(target)
	if err != nil {
		s.dropConn()
		return "", apperrors.Wrap(err, apperrors.TypeResource, "failed to create remote file "+target, "Check permissions on the remote path.")
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.dropConn()
		return "", apperrors.Wrap(err, apperrors.TypeConnection, "SFTP upload interrupted", "Check the connection stability.")
	}
	if err := f.Close(); err != nil {
		s.dropConn()
		return "", apperrors.Wrap(err, apperrors.TypeConnection, "failed to finalize remote file", "Check the connection stability.")
	}

	return "sftp://" + s.host + target, nil
}

func (s *SFTP) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.connect(); err != nil {
		return err
	}
	if _, err := s.sftpClient.Getwd(); err != nil {
		s.dropConn()
		return apperrors.Wrap(err, apperrors.TypeConnection, "SFTP connection lost", "Check host reachability.")
	}
	return nil
}

func (s *SFTP) Location() string {
	return "sftp://" + s.host + s.remotePath
}

func (s *SFTP) dropConn() {
	if s.sftpClient != nil {
		_ = s.sftpClient.Close()
		s.sftpClient = nil
	}
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
}

func (s *SFTP) Close() error {
	var err error
	if s.sftpClient != nil {
		err = s.sftpClient.Close()
		s.sftpClient = nil
	}
	if s.client != nil {
		if cerr := s.client.Close(); err == nil {
			err = cerr
		}
		s.client = nil
	}
	return err
}
