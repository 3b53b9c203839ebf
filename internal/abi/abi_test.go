package abi

import "testing"

func TestSedaCoreMethodsPresent(t *testing.T) {
	for _, name := range []string{"postRequest", "postResult", "getPendingRequests", "getResult", "getSedaProver", "hasResult"} {
		if _, ok := SedaCore.Methods[name]; !ok {
			t.Fatalf("ISedaCore missing method %q", name)
		}
	}
}

func TestProverMethodsPresent(t *testing.T) {
	for _, name := range []string{"getLastBatchHeight", "getFeeManager"} {
		if _, ok := Prover.Methods[name]; !ok {
			t.Fatalf("IProver missing method %q", name)
		}
	}
}

func TestSecp256k1ProverV1MethodsPresent(t *testing.T) {
	for _, name := range []string{"postBatch", "paused"} {
		if _, ok := Secp256k1ProverV1.Methods[name]; !ok {
			t.Fatalf("Secp256k1ProverV1 missing method %q", name)
		}
	}
}

func TestSedaFeeManagerMethodsPresent(t *testing.T) {
	for _, name := range []string{"withdrawFees", "getPendingFees"} {
		if _, ok := SedaFeeManager.Methods[name]; !ok {
			t.Fatalf("SedaFeeManager missing method %q", name)
		}
	}
}

func TestMethodIDsAreFourBytes(t *testing.T) {
	for _, m := range SedaCore.Methods {
		if len(m.ID) != 4 {
			t.Fatalf("method %q has non-4-byte selector", m.Name)
		}
	}
}
