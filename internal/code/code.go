// Package code defines MQTT reason codes and the compatibility table that
// translates MQTT5 reason codes into the older protocol versions' narrower
// return-code sets.
package code

import "fmt"

// Code is an MQTT5 reason code. Earlier protocol versions receive a
// translated subset via Compat.
type Code byte

// Reason codes used across CONNACK, PUBACK, PUBREC, PUBREL, PUBCOMP,
// SUBACK, UNSUBACK and DISCONNECT. Not every code is legal on every packet
// kind; Compat narrows per (packet kind, version).
const (
	Success                     Code = 0x00
	NormalDisconnection         Code = 0x00
	GrantedQoS0                 Code = 0x00
	GrantedQoS1                 Code = 0x01
	GrantedQoS2                 Code = 0x02
	NoMatchingSubscribers       Code = 0x10
	NoSubscriptionExisted       Code = 0x11
	UnspecifiedError            Code = 0x80
	MalformedPacket             Code = 0x81
	ProtocolError               Code = 0x82
	ImplementationSpecificError Code = 0x83
	UnsupportedProtocolVersion  Code = 0x84
	ClientIdentifierNotValid    Code = 0x85
	BadUsernameOrPassword       Code = 0x86
	NotAuthorized               Code = 0x87
	ServerUnavailable           Code = 0x88
	ServerBusy                  Code = 0x89
	Banned                      Code = 0x8A
	BadAuthenticationMethod     Code = 0x8C
	KeepAliveTimeout            Code = 0x8D
	TopicFilterInvalid          Code = 0x8F
	TopicNameInvalid            Code = 0x90
	PacketIdentifierInUse       Code = 0x91
	PacketIdentifierNotFound    Code = 0x92
	ReceiveMaximumExceeded      Code = 0x93
	TopicAliasInvalid           Code = 0x94
	PacketTooLarge              Code = 0x95
	QuotaExceeded               Code = 0x97
	PayloadFormatInvalid        Code = 0x99
	RetainNotSupported          Code = 0x9A
	QoSNotSupported             Code = 0x9B
	UseAnotherServer            Code = 0x9C
	ServerMoved                 Code = 0x9D
	SharedSubNotSupported       Code = 0x9E
	WildcardSubNotSupported     Code = 0xA2
)

func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(0x%02x)", byte(c))
}

var names = map[Code]string{
	Success:                     "Success",
	GrantedQoS1:                 "GrantedQoS1",
	GrantedQoS2:                 "GrantedQoS2",
	NoMatchingSubscribers:       "NoMatchingSubscribers",
	NoSubscriptionExisted:       "NoSubscriptionExisted",
	UnspecifiedError:            "UnspecifiedError",
	MalformedPacket:             "MalformedPacket",
	ProtocolError:               "ProtocolError",
	ImplementationSpecificError: "ImplementationSpecificError",
	UnsupportedProtocolVersion:  "UnsupportedProtocolVersion",
	ClientIdentifierNotValid:    "ClientIdentifierNotValid",
	BadUsernameOrPassword:       "BadUsernameOrPassword",
	NotAuthorized:               "NotAuthorized",
	ServerUnavailable:           "ServerUnavailable",
	ServerBusy:                  "ServerBusy",
	Banned:                      "Banned",
	BadAuthenticationMethod:     "BadAuthenticationMethod",
	KeepAliveTimeout:            "KeepAliveTimeout",
	TopicFilterInvalid:          "TopicFilterInvalid",
	TopicNameInvalid:            "TopicNameInvalid",
	PacketIdentifierInUse:       "PacketIdentifierInUse",
	PacketIdentifierNotFound:    "PacketIdentifierNotFound",
	ReceiveMaximumExceeded:      "ReceiveMaximumExceeded",
	TopicAliasInvalid:           "TopicAliasInvalid",
	PacketTooLarge:              "PacketTooLarge",
	QuotaExceeded:               "QuotaExceeded",
	PayloadFormatInvalid:        "PayloadFormatInvalid",
	RetainNotSupported:          "RetainNotSupported",
	QoSNotSupported:             "QoSNotSupported",
	UseAnotherServer:            "UseAnotherServer",
	ServerMoved:                 "ServerMoved",
	SharedSubNotSupported:       "SharedSubNotSupported",
	WildcardSubNotSupported:     "WildcardSubNotSupported",
}

// PacketKind names the packet a reason code is being translated for, since
// the legal/compat code set differs per packet kind.
type PacketKind byte

const (
	KindConnack PacketKind = iota
	KindPuback
	KindPubrec
	KindPubrel
	KindPubcomp
	KindSuback
	KindUnsuback
	KindDisconnect
)
