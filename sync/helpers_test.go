package sync

import (
	"testing"

	json "github.com/goccy/go-json"
)

const testEntity = "https://vng.opencatalogi.nl/schemas/zrc.zaak.schema.json"

// testZaak builds a zaak with a natural person role for bsn (skipped when
// empty) and eigenschappen from name, value pairs.
func testZaak(t *testing.T, id, zaaktype, bsn string, properties ...string) []byte {
	t.Helper()
	if len(properties)%2 != 0 {
		t.Fatalf("properties must be name, value pairs")
	}
	zaak := map[string]interface{}{
		"_self":            map[string]interface{}{"id": id},
		"identificatie":    "ZAAK-" + id,
		"registratiedatum": "2024-03-01",
		"zaaktype":         map[string]interface{}{"identificatie": zaaktype},
	}
	if bsn != "" {
		zaak["rollen"] = []interface{}{
			map[string]interface{}{
				"betrokkeneType":          NaturalPersonRoleType,
				"betrokkeneIdentificatie": map[string]interface{}{"inpBsn": bsn},
			},
		}
	}
	eigenschappen := []interface{}{}
	for i := 0; i < len(properties); i += 2 {
		eigenschappen = append(eigenschappen, map[string]interface{}{"naam": properties[i], "waarde": properties[i+1]})
	}
	zaak["eigenschappen"] = eigenschappen
	result, err := json.Marshal(zaak)
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func testCase(t *testing.T, zaaktype, bsn string, properties ...string) Case {
	t.Helper()
	return NewCase(testZaak(t, "a1b2c3", zaaktype, bsn, properties...))
}
