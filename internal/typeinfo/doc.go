// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains code relating to Go record types and their binding
to native column and parameter slots. As much as possible, reflection code is
limited to this package.

A record type is described once by a closed schema of nodes (scalars, text
buffers, nullable wrappers, records and tuples) generated by reflection and
cached per type. Walk then visits the primitive leaves of a value of that type
in declaration order, handing a Descriptor per leaf to a Sink.
*/
package typeinfo
