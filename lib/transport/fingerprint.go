package transport

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fingerprint returns the pool namespace for a destination and its options.
//
// Every option that changes the established connection takes part: host,
// port, proxy, per-phase timeouts, TLS use and timeout, CA source, client
// certificate (serial number and a SHA-256 of the PKCS#8 key, never the key
// itself), verification mode, hostname verification and TLS version bounds.
// Defaults are applied first, so an unset option and its default match.
func Fingerprint(host string, port int, opts Options) string {
	o := opts.WithDefaults()

	proxyType, proxyAddr, proxyPort := "", "", ""
	if o.HasProxy() {
		proxyType = string(o.ProxyType)
		proxyAddr = strings.ToLower(o.ProxyAddress)
		proxyPort = strconv.Itoa(o.ProxyPort)
	}

	fields := []string{
		strings.ToLower(host),
		strconv.Itoa(port),
		proxyType,
		proxyAddr,
		proxyPort,
		o.ProxyUser,
		durationField(o.OpenTimeout),
		durationField(o.WriteTimeout),
		durationField(o.ReadTimeout),
		strconv.FormatBool(o.UseTLS),
		durationField(o.TLSTimeout),
		caIdentity(o),
		certSerial(o.Certificate),
		keyDigest(o),
		o.VerifyMode.String(),
		strconv.FormatBool(!o.SkipHostnameVerify),
		strconv.FormatUint(uint64(o.MinVersion), 16),
		strconv.FormatUint(uint64(o.MaxVersion), 16),
	}

	for i, f := range fields {
		fields[i] = url.QueryEscape(f)
	}
	return strings.Join(fields, "|")
}

func durationField(d time.Duration) string {
	return strconv.FormatInt(int64(d), 10)
}

func caIdentity(o Options) string {
	switch {
	case o.CAPool != nil && o.CAName != "":
		return "pool:" + o.CAName
	case o.CAPool != nil:
		return fmt.Sprintf("pool:%p", o.CAPool)
	case o.CAFile != "":
		return "file:" + o.CAFile
	default:
		return ""
	}
}

func certSerial(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}
	return cert.SerialNumber.String()
}

// keyDigest hashes the DER form of the client key.
func keyDigest(o Options) string {
	if o.Key == nil {
		return ""
	}
	der, err := x509.MarshalPKCS8PrivateKey(o.Key)
	if err != nil {
		// Unmarshalable key types still need a stable, distinct identity.
		der = []byte(fmt.Sprintf("%T:%p", o.Key, o.Key))
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}
