package hpack

// HeaderField is a single (name, value) pair, grounded on dgrr-http2's
// headerField.go pooled-field shape but without the sync.Pool machinery
// (HPACK tables are per-connection and already bounded in size).
type HeaderField struct {
	Name, Value string
	Sensitive   bool
}

// Size is the RFC 7541 §4.1 accounting size of the entry.
func (f HeaderField) Size() int {
	return len(f.Name) + len(f.Value) + 32
}

// staticTable is the 61-entry read-only table defined by RFC 7541 Appendix
// A. Index space: 1..61 here, 62.. in the dynamic table.
var staticTable = [61]HeaderField{
	{Name: ":authority"},
	{Name: ":method", Value: "GET"},
	{Name: ":method", Value: "POST"},
	{Name: ":path", Value: "/"},
	{Name: ":path", Value: "/index.html"},
	{Name: ":scheme", Value: "http"},
	{Name: ":scheme", Value: "https"},
	{Name: ":status", Value: "200"},
	{Name: ":status", Value: "204"},
	{Name: ":status", Value: "206"},
	{Name: ":status", Value: "304"},
	{Name: ":status", Value: "400"},
	{Name: ":status", Value: "404"},
	{Name: ":status", Value: "500"},
	{Name: "accept-charset"},
	{Name: "accept-encoding", Value: "gzip, deflate"},
	{Name: "accept-language"},
	{Name: "accept-ranges"},
	{Name: "accept"},
	{Name: "access-control-allow-origin"},
	{Name: "age"},
	{Name: "allow"},
	{Name: "authorization"},
	{Name: "cache-control"},
	{Name: "content-disposition"},
	{Name: "content-encoding"},
	{Name: "content-language"},
	{Name: "content-length"},
	{Name: "content-location"},
	{Name: "content-range"},
	{Name: "content-type"},
	{Name: "cookie"},
	{Name: "date"},
	{Name: "etag"},
	{Name: "expect"},
	{Name: "expires"},
	{Name: "from"},
	{Name: "host"},
	{Name: "if-match"},
	{Name: "if-modified-since"},
	{Name: "if-none-match"},
	{Name: "if-range"},
	{Name: "if-unmodified-since"},
	{Name: "last-modified"},
	{Name: "link"},
	{Name: "location"},
	{Name: "max-forwards"},
	{Name: "proxy-authenticate"},
	{Name: "proxy-authorization"},
	{Name: "range"},
	{Name: "referer"},
	{Name: "refresh"},
	{Name: "retry-after"},
	{Name: "server"},
	{Name: "set-cookie"},
	{Name: "strict-transport-security"},
	{Name: "transfer-encoding"},
	{Name: "user-agent"},
	{Name: "vary"},
	{Name: "via"},
	{Name: "www-authenticate"},
}

const staticTableSize = len(staticTable)

// staticNameIndex maps a header name to the first static-table index (1-based)
// that carries it, used for name-only matches when encoding.
var staticNameIndex = func() map[string]uint64 {
	m := make(map[string]uint64, staticTableSize)
	for i, f := range staticTable {
		if _, ok := m[f.Name]; !ok {
			m[f.Name] = uint64(i + 1)
		}
	}
	return m
}()

// staticFullIndex maps an exact (name,value) pair to its static index.
var staticFullIndex = func() map[HeaderField]uint64 {
	m := make(map[HeaderField]uint64, staticTableSize)
	for i, f := range staticTable {
		m[f] = uint64(i + 1)
	}
	return m
}()
