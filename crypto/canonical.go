package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Canonicalize renders v as RFC 8785 JSON Canonicalization Scheme bytes:
// object keys sorted lexicographically by their UTF-16 code units (ASCII
// keys, as used throughout this module, sort identically under byte and
// UTF-16 comparison), no insignificant whitespace, and numbers in their
// shortest round-trip decimal form with no floating point ever introduced
// by this package (every numeric field in the ledger's data model is an
// integer). v is first marshaled through encoding/json so struct tags and
// omitempty behave normally, then reparsed with UseNumber to preserve each
// number's exact decimal text instead of coercing through float64.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("crypto: decode for canonicalization: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return writeCanonicalNumber(buf, val)
	case string:
		writeCanonicalString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("crypto: unsupported canonical value type %T", v)
	}
	return nil
}

// writeCanonicalNumber rejects fractional/exponential forms: the ledger
// never serializes floating point values, so any number reaching here is
// required to be a plain integer.
func writeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("crypto: non-integer number %q in canonical payload: %w", n.String(), err)
	}
	buf.WriteString(strconv.FormatInt(i, 10))
	return nil
}

// writeCanonicalString writes a JSON string using Go's encoder with HTML
// escaping turned off, so <, > and & stay literal as JCS requires; quote,
// backslash and control characters get their shortest escapes. U+2028 and
// U+2029 are still escaped rather than written as literal characters.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}
