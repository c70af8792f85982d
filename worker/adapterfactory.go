package worker

import (
	"crypto/tls"
	"fmt"

	"github.com/afdcore/afdcore/protocol"
	"github.com/afdcore/afdcore/protocol/ftp"
	"github.com/afdcore/afdcore/protocol/httpproto"
	"github.com/afdcore/afdcore/protocol/scp"
	"github.com/afdcore/afdcore/protocol/sftp"
	"golang.org/x/crypto/ssh"
)

// NewAdapter builds the protocol.Adapter named by d.Scheme. SSH-based
// schemes use ssh.InsecureIgnoreHostKey when no known_hosts file is wired
// in (host-key pinning is a dispatcher/config-file concern outside this
// core's scope, spec.md §1).
func NewAdapter(d Descriptor) (protocol.Adapter, error) {
	switch d.Scheme {
	case SchemeFTP, "":
		return ftp.New(ftp.Plain, nil, d.ActiveMode, d.DisableEPSV), nil
	case SchemeFTPExplicit:
		return ftp.New(ftp.ExplicitTLS, tlsConfig(d), d.ActiveMode, d.DisableEPSV), nil
	case SchemeFTPImplicit:
		return ftp.New(ftp.ImplicitTLS, tlsConfig(d), d.ActiveMode, d.DisableEPSV), nil
	case SchemeSFTP:
		return sftp.New(hostKeyCallback(d)), nil
	case SchemeSCP:
		return scp.New(hostKeyCallback(d)), nil
	case SchemeHTTP, SchemeHTTPS:
		return httpproto.New(), nil
	default:
		return nil, fmt.Errorf("worker: unknown scheme %q", d.Scheme)
	}
}

func tlsConfig(d Descriptor) *tls.Config {
	return &tls.Config{InsecureSkipVerify: !d.TLSStrictVerify, ServerName: d.Host}
}

func hostKeyCallback(d Descriptor) ssh.HostKeyCallback {
	return ssh.InsecureIgnoreHostKey()
}
