package security_test

import (
	"testing"

	"github.com/deepref-sh/deepref/internal/security"
	. "github.com/onsi/gomega"
)

func TestNewOpaqueToken(t *testing.T) {
	g := NewWithT(t)

	token, err := security.NewOpaqueToken()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(token).To(MatchRegexp("^[0-9a-f]{64}$"))

	other, err := security.NewOpaqueToken()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(other).NotTo(Equal(token))
}

func TestHashToken(t *testing.T) {
	g := NewWithT(t)

	hash := security.HashToken("some-token")
	g.Expect(hash).To(HaveLen(32))
	g.Expect(security.HashToken("some-token")).To(Equal(hash))
	g.Expect(security.HashToken("other-token")).NotTo(Equal(hash))
}
