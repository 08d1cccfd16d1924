package handlers

import (
	"fmt"
	"strings"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/service"
)

const (
	maxInstanceIDLen = 128
	maxAddressLen    = 255
	maxFilters       = 16
)

// Paging holds the page size policy of discovery queries.
type Paging struct {
	Default int
	Max     int
}

// fromRegisterRequest converts RegisterRequest from a server reporting from host to domain.Registration.
// The identity is always derived from host so a server cannot register under another host's identity.
// Returns service.MalformedError on validation failure.
func fromRegisterRequest(req RegisterRequest, host string, schema domain.Schema) (domain.Registration, error) {
	if req.InstanceId == "" {
		return domain.Registration{}, service.NewMalformedError("instance_id is required", nil)
	}
	if len(req.InstanceId) > maxInstanceIDLen || strings.ContainsAny(req.InstanceId, "/ ") {
		return domain.Registration{}, service.NewMalformedError("instance_id must be at most 128 characters without '/' or spaces", nil)
	}
	if req.Port < 1 || req.Port > 65535 {
		return domain.Registration{}, service.NewMalformedError(fmt.Sprintf("port %d is out of range", req.Port), nil)
	}
	if host == "" {
		return domain.Registration{}, service.NewMalformedError("caller address is unknown", nil)
	}

	address := host
	if a := helpers.Value(req.Address); a != "" {
		address = a
	}
	if len(address) > maxAddressLen || strings.ContainsAny(address, " /") {
		return domain.Registration{}, service.NewMalformedError("address is not a host name or IP", nil)
	}

	metadata, err := fromMetadata(req.Metadata, schema)
	if err != nil {
		return domain.Registration{}, err
	}

	return domain.Registration{
		Identity:   domain.NewIdentity(host, req.InstanceId),
		InstanceID: req.InstanceId,
		Address:    address,
		Port:       req.Port,
		Metadata:   metadata,
	}, nil
}

// fromMetadata narrows wire metadata to the schema. Absent metadata is empty.
func fromMetadata(m *Metadata, schema domain.Schema) (domain.Metadata, error) {
	if m == nil {
		return domain.Metadata{}, nil
	}
	metadata, err := schema.Coerce(*m)
	if err != nil {
		return nil, service.NewMalformedError("invalid metadata: "+err.Error(), err)
	}
	return metadata, nil
}

// fromGeneration converts a wire generation. Zero means absent.
func fromGeneration(g int64) (domain.Generation, error) {
	if g < 0 {
		return 0, service.NewMalformedError("generation must not be negative", nil)
	}
	return domain.Generation(g), nil
}

// fromQuery converts the discovery query parameters to domain.Query. The limit is clamped to paging.Max.
func fromQuery(filters []string, cursor string, limit *int, paging Paging, schema domain.Schema) (domain.Query, error) {
	if len(filters) > maxFilters {
		return domain.Query{}, service.NewMalformedError(fmt.Sprintf("at most %d filters are allowed", maxFilters), nil)
	}
	raw := make([]domain.RawCondition, 0, len(filters))
	for _, f := range filters {
		rc, err := domain.ParseRawCondition(f)
		if err != nil {
			return domain.Query{}, service.NewMalformedError("invalid filter: "+err.Error(), err)
		}
		raw = append(raw, rc)
	}
	filter, err := schema.CompileFilter(raw)
	if err != nil {
		return domain.Query{}, service.NewMalformedError("invalid filter: "+err.Error(), err)
	}

	c := domain.Cursor(cursor)
	if _, err := c.After(); err != nil {
		return domain.Query{}, service.NewMalformedError("invalid cursor", err)
	}

	n := paging.Default
	if limit != nil {
		if *limit < 1 {
			return domain.Query{}, service.NewMalformedError("limit must be positive", nil)
		}
		n = *limit
	}
	if paging.Max > 0 && n > paging.Max {
		n = paging.Max
	}

	return domain.Query{Filter: filter, Cursor: c, Limit: n}, nil
}

// fromListServersParams converts ListServersParams to domain.Query.
func fromListServersParams(params ListServersParams, paging Paging, schema domain.Schema) (domain.Query, error) {
	return fromQuery(helpers.Value(params.Filter), helpers.Value(params.Cursor), params.Limit, paging, schema)
}
