// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package odbctest

// SQLSTATE codes reported in diagnostic records.
const (
	stateTruncated          = "01004"
	stateWrongParamCount    = "07002"
	stateRestrictedType     = "07006"
	stateBadDescriptorIndex = "07009"
	stateUnableToConnect    = "08001"
	stateNotConnected       = "08003"
	stateRightTruncated     = "22001"
	stateNoIndicator        = "22002"
	stateOutOfRange         = "22003"
	stateBadCast            = "22018"
	stateInvalidCursor      = "24000"
	stateInvalidTX          = "25000"
	stateSyntax             = "42000"
	stateGeneral            = "HY000"
	stateBadCType           = "HY003"
	stateNullPointer        = "HY009"
	stateSequence           = "HY010"
	stateBadAttrValue       = "HY024"
	stateBadBufferLength    = "HY090"
	stateInvalidHandleType  = "HY092"
	stateBadOption          = "HY092"
	stateNotImplemented     = "HYC00"
	stateDriverNotFound     = "IM002"
)
