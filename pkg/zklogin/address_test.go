package zklogin_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/sprinkle-app/sprinkle-go/pkg/zklogin"
)

func TestDeriveAddressStability(t *testing.T) {
	deriver, err := zklogin.NewSaltDeriver("seed")
	if err != nil {
		t.Fatal(err)
	}
	token := makeIDToken(t, defaultClaims("abc"))
	salt, err := deriver.DeriveSalt(token)
	if err != nil {
		t.Fatal(err)
	}

	first, err := zklogin.DeriveAddress(token, salt)
	if err != nil {
		t.Fatal("derive address failed: ", err)
	}
	if !strings.HasPrefix(first, "0x") || len(first) != 66 {
		t.Errorf("unexpected address format %q", first)
	}

	// repeated logins with a fresh token for the same identity
	again := makeIDToken(t, defaultClaims("completely-different-nonce"))
	second, err := zklogin.DeriveAddress(again, salt)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("address not stable across logins: %s != %s", first, second)
	}
}

func TestDeriveAddressVariesPerSubject(t *testing.T) {
	deriver, err := zklogin.NewSaltDeriver("seed")
	if err != nil {
		t.Fatal(err)
	}
	tokenA := makeIDToken(t, defaultClaims("abc"))
	tokenB := makeIDToken(t, map[string]interface{}{
		"iss": "https://accounts.example.com", "aud": "client1", "sub": "user43", "nonce": "abc",
	})

	saltA, _ := deriver.DeriveSalt(tokenA)
	saltB, _ := deriver.DeriveSalt(tokenB)

	addrA, err := zklogin.DeriveAddress(tokenA, saltA)
	if err != nil {
		t.Fatal(err)
	}
	addrB, err := zklogin.DeriveAddress(tokenB, saltB)
	if err != nil {
		t.Fatal(err)
	}
	if addrA == addrB {
		t.Error("different subjects must map to different addresses")
	}
}

func TestDeriveAddressNoSubject(t *testing.T) {
	token := makeIDToken(t, map[string]interface{}{
		"iss": "https://accounts.example.com", "aud": "client1",
	})
	if _, err := zklogin.DeriveAddress(token, big.NewInt(1)); err == nil {
		t.Error("expected error for token without subject")
	}
}

func TestAddressSeedDeterminism(t *testing.T) {
	salt := big.NewInt(123456789)
	first := zklogin.AddressSeed(salt, "sub", "user42", "client1")
	second := zklogin.AddressSeed(salt, "sub", "user42", "client1")
	if first.Cmp(second) != 0 {
		t.Error("address seed not deterministic")
	}
	if first.Sign() < 0 {
		t.Error("address seed must be non-negative")
	}
	other := zklogin.AddressSeed(salt, "sub", "user43", "client1")
	if first.Cmp(other) == 0 {
		t.Error("address seed must depend on the claim value")
	}
}
