// Package api embeds the OpenAPI documents of the registration and discovery HTTP APIs.
package api

import _ "embed"

//go:embed registration.openapi.yaml
var RegistrationOpenAPI []byte

//go:embed discovery.openapi.yaml
var DiscoveryOpenAPI []byte
