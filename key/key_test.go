package key

import "testing"

func TestCanonical_SortsArgsAndEscapes(t *testing.T) {
	k := Key{
		KeyType: "user_id",
		ID:      "u1",
		Args:    map[string]string{"z": "1", "user": "a@x"},
		UseCase: "profile",
	}

	got := k.Canonical("urn")
	want := "urn:urn:user_id:u1?user=a%40x&z=1#profile"
	if got != want {
		t.Fatalf("Canonical() = %q, want %q", got, want)
	}
}

func TestCanonical_NoArgs(t *testing.T) {
	k := Key{KeyType: "order_id", ID: "42", UseCase: "order_detail"}
	got := k.Canonical("gc")
	want := "urn:gc:order_id:42#order_detail"
	if got != want {
		t.Fatalf("Canonical() = %q, want %q", got, want)
	}
}

func TestCanonical_ArgOrderIrrelevantToInput(t *testing.T) {
	a := Key{KeyType: "t", ID: "1", Args: map[string]string{"b": "2", "a": "1"}, UseCase: "uc"}
	b := Key{KeyType: "t", ID: "1", Args: map[string]string{"a": "1", "b": "2"}, UseCase: "uc"}

	if a.Canonical("p") != b.Canonical("p") {
		t.Fatalf("canonical keys differ for maps built in different insertion order")
	}
}

func TestWatermarkKey_IgnoresArgsAndUseCase(t *testing.T) {
	got := WatermarkKey("urn", "user_id", "42")
	want := "urn:urn:user_id:42#watermark"
	if got != want {
		t.Fatalf("WatermarkKey() = %q, want %q", got, want)
	}
}
