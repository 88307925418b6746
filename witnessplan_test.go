package apollo

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/common"
)

func TestIsByronAddressFalseForShelleyAddress(t *testing.T) {
	addr := testAddress(t)
	if isByronAddress(addr) {
		t.Error("expected a Shelley-era test address not to be classified as Byron")
	}
}

func TestAddCertificateSignersPoolRegistration(t *testing.T) {
	var operator common.Blake2b224
	copy(operator[:], []byte("oooooooooooooooooooooooooooo"))
	var owner1, owner2 common.AddrKeyHash
	copy(owner1[:], []byte("11111111111111111111111111111"))
	copy(owner2[:], []byte("22222222222222222222222222222"))

	cert := &common.PoolRegistrationCertificate{
		Operator:   operator,
		PoolOwners: []common.AddrKeyHash{owner1, owner2},
	}
	cw := common.CertificateWrapper{Certificate: cert}

	plan := NewFakeWitnessPlan()
	addCertificateSigners(plan, cw)

	if len(plan.SignerHashes) != 3 {
		t.Fatalf("expected operator + 2 pool owners = 3 signers, got %d", len(plan.SignerHashes))
	}
	if _, ok := plan.SignerHashes[operator]; !ok {
		t.Error("expected pool operator to be a signer")
	}
	if _, ok := plan.SignerHashes[common.Blake2b224(owner1)]; !ok {
		t.Error("expected first pool owner to be a signer")
	}
	if _, ok := plan.SignerHashes[common.Blake2b224(owner2)]; !ok {
		t.Error("expected second pool owner to be a signer")
	}
}

func TestAddCertificateSignersStakeRegistration(t *testing.T) {
	var keyHash common.Blake2b224
	copy(keyHash[:], []byte("kkkkkkkkkkkkkkkkkkkkkkkkkkkkk"))

	cert := &common.StakeRegistrationCertificate{
		StakeCredential: common.Credential{
			CredType:   common.CredentialTypeAddrKeyHash,
			Credential: keyHash,
		},
	}
	cw := common.CertificateWrapper{Certificate: cert}

	plan := NewFakeWitnessPlan()
	addCertificateSigners(plan, cw)

	if len(plan.SignerHashes) != 1 {
		t.Fatalf("expected 1 signer, got %d", len(plan.SignerHashes))
	}
	if _, ok := plan.SignerHashes[keyHash]; !ok {
		t.Error("expected stake credential key hash to be a signer")
	}
}

func TestAddCertificateSignersSkipsScriptCredential(t *testing.T) {
	var scriptHash common.Blake2b224
	copy(scriptHash[:], []byte("ssssssssssssssssssssssssssss"))

	cert := &common.StakeRegistrationCertificate{
		StakeCredential: common.Credential{
			CredType:   common.CredentialTypeScriptHash,
			Credential: scriptHash,
		},
	}
	cw := common.CertificateWrapper{Certificate: cert}

	plan := NewFakeWitnessPlan()
	addCertificateSigners(plan, cw)

	if len(plan.SignerHashes) != 0 {
		t.Errorf("script-backed credentials should not add a vkey signer, got %d", len(plan.SignerHashes))
	}
}

func TestFakeWitnessPlanWalletOnly(t *testing.T) {
	cc := setupFixedContext()
	addr := testAddress(t)
	w := NewExternalWallet(addr)

	a := New(cc).SetWallet(w)
	plan := a.fakeWitnessPlan(nil)

	if _, ok := plan.SignerHashes[w.PubKeyHash()]; !ok {
		t.Error("expected wallet's payment key hash to be included as a fake signer")
	}
	if len(plan.SignerHashes) != 1 {
		t.Errorf("expected exactly 1 signer from a wallet-only plan, got %d", len(plan.SignerHashes))
	}
}

func TestFakeWitnessPlanIncludesRequiredSigners(t *testing.T) {
	cc := setupFixedContext()
	var required common.Blake2b224
	copy(required[:], []byte("rrrrrrrrrrrrrrrrrrrrrrrrrrrrr"))

	a := New(cc).AddRequiredSigner(required)
	plan := a.fakeWitnessPlan(nil)

	if _, ok := plan.SignerHashes[required]; !ok {
		t.Error("expected required signer to be included in the fake witness plan")
	}
}
