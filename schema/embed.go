package schema

import _ "embed"

// ManifestV1 contains the JSON schema for tether.yaml manifests.
//
//go:embed tether.v1.json
var ManifestV1 []byte
