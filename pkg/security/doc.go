/*
Package security manages the cluster certificate.

The master and every node agent share one self-signed certificate and its
private key, stored together in a PEM file (by default server.pem in the
data directory). A connection between them is accepted only when the peer
presents exactly that certificate, in both directions:

	master (Collector)                       node (Agent)
	ClientTLSConfig(cert) ── mutual TLS ──► ServerTLSConfig(cert)
	        peer cert == cluster cert?          peer cert == cluster cert?

There is no certificate authority and no host name verification; copying
server.pem to a node is what admits it to the cluster. Replacing the file
on all nodes rotates the credentials.

Usage:

	cert, err := security.GenerateClusterCert("cluster.example.com", 0)
	if err != nil {
		return err
	}
	if err := security.SaveClusterCert(cert, "/var/lib/ganeti/server.pem"); err != nil {
		return err
	}
*/
package security
