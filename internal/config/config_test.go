package config

import "testing"

func TestDefaultMatchesReferenceDeployment(t *testing.T) {
	cfg := Default()
	if cfg.LongRange.FrequencyHz != 930_000_000 {
		t.Fatalf("expected 930 MHz default, got %f", cfg.LongRange.FrequencyHz)
	}
	if cfg.LongRange.SpreadingFactor != 6 || cfg.LongRange.CodingRate != 5 {
		t.Fatalf("expected SF6/CR5 defaults, got SF%d/CR%d", cfg.LongRange.SpreadingFactor, cfg.LongRange.CodingRate)
	}
	if cfg.LongRange.TXPowerDBm != 4 {
		t.Fatalf("expected 4 dBm default TX power, got %d", cfg.LongRange.TXPowerDBm)
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	if cfg.LongRange.FrequencyHz != Default().LongRange.FrequencyHz {
		t.Fatal("expected the returned config to still carry reference defaults")
	}
}

func TestPeerHardwareAddrParsesColonForm(t *testing.T) {
	cfg := Config{PeerMAC: "AA:BB:CC:DD:EE:FF"}
	addr, err := cfg.PeerHardwareAddr()
	if err != nil {
		t.Fatal(err)
	}
	want := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if addr != want {
		t.Fatalf("expected %v, got %v", want, addr)
	}
}

func TestPeerHardwareAddrEmptyIsZero(t *testing.T) {
	cfg := Config{}
	addr, err := cfg.PeerHardwareAddr()
	if err != nil {
		t.Fatal(err)
	}
	if addr != ([6]byte{}) {
		t.Fatalf("expected zero MAC for empty peer_mac, got %v", addr)
	}
}

func TestPeerHardwareAddrRejectsMalformed(t *testing.T) {
	cfg := Config{PeerMAC: "not-a-mac"}
	if _, err := cfg.PeerHardwareAddr(); err == nil {
		t.Fatal("expected an error for a malformed peer_mac")
	}
}
