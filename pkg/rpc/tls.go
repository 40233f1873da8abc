package rpc

import (
	"crypto/tls"

	"github.com/sanyaade-teachings/ganeti/pkg/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// ServerCredentials makes an agent accept only peers holding the cluster
// certificate
func ServerCredentials(cert *tls.Certificate) grpc.ServerOption {
	return grpc.Creds(credentials.NewTLS(security.ServerTLSConfig(cert)))
}

// ClientCredentials makes a collector authenticate with the cluster
// certificate and require it from the agents
func ClientCredentials(cert *tls.Certificate) grpc.DialOption {
	return grpc.WithTransportCredentials(credentials.NewTLS(security.ClientTLSConfig(cert)))
}
