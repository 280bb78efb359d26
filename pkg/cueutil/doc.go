// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the CUE parsing flow shared by the unit catalog and
// the application config:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// # Usage
//
//	//go:embed catalog_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[catalogFile](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Catalog",
//	    cueutil.WithFilename("units.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes CUE path for debugging
//	}
//	return result.Value, nil
package cueutil
