package errors

// Error code allocation for tee-signer modules.
//
// Each module is allocated a range of 100 error codes so that a
// (module, code) pair identifies a failure site uniquely.

// ModuleCodeRange defines the error code range for a module.
type ModuleCodeRange struct {
	Module      string
	StartCode   uint32
	EndCode     uint32
	Description string
}

// AllModuleRanges contains all allocated error code ranges.
var AllModuleRanges = []ModuleCodeRange{
	{Module: "wire", StartCode: 100, EndCode: 199, Description: "Binary encoding and framing"},
	{Module: "sealing", StartCode: 200, EndCode: 299, Description: "Sealing-key derivation and AEAD"},
	{Module: "signer", StartCode: 300, EndCode: 399, Description: "Sealed signer operations"},
	{Module: "protocol", StartCode: 400, EndCode: 499, Description: "Request/response protocol"},
	{Module: "enclave", StartCode: 500, EndCode: 599, Description: "Enclave request handling"},
	{Module: "server", StartCode: 600, EndCode: 699, Description: "Host bridge"},
	{Module: "provider", StartCode: 700, EndCode: 799, Description: "Client provider"},
}

// GetModuleRange returns the error code range for a module.
func GetModuleRange(module string) (ModuleCodeRange, bool) {
	for _, r := range AllModuleRanges {
		if r.Module == module {
			return r, true
		}
	}
	return ModuleCodeRange{}, false
}

// ValidateCode checks if an error code is within the allocated range for a module.
func ValidateCode(module string, code uint32) bool {
	r, ok := GetModuleRange(module)
	if !ok {
		return false
	}
	return code >= r.StartCode && code <= r.EndCode
}
