package irc

import "fmt"

// Code is a three-digit numeric reply code.
type Code int

func (c Code) String() string {
	return fmt.Sprintf("%03d", int(c))
}

// Replies.
const (
	RplWelcome       Code = 1
	RplYourHost      Code = 2
	RplCreated       Code = 3
	RplMyInfo        Code = 4
	RplTraceLink     Code = 200
	RplTraceUnknown  Code = 203
	RplTraceOperator Code = 204
	RplTraceUser     Code = 205
	RplTraceServer   Code = 206
	RplTraceService  Code = 207
	RplLUserClient   Code = 251
	RplLUserOp       Code = 252
	RplLUserChannels Code = 254
	RplLUserMe       Code = 255
	RplTraceEnd      Code = 262
	RplVersion       Code = 351
	RplNamReply      Code = 353
	RplLinks         Code = 364
	RplEndOfLinks    Code = 365
	RplEndOfNames    Code = 366
	RplInfo          Code = 371
	RplMOTD          Code = 372
	RplEndOfInfo     Code = 374
	RplMOTDStart     Code = 375
	RplEndOfMOTD     Code = 376
	RplYoureOper     Code = 381
	RplYoureService  Code = 383
	RplTime          Code = 391
)

// Errors.
const (
	ErrNoSuchNick        Code = 401
	ErrNoSuchServer      Code = 402
	ErrNoSuchChannel     Code = 403
	ErrCannotSendToChan  Code = 404
	ErrNoOrigin          Code = 409
	ErrNoRecipient       Code = 411
	ErrNoTextToSend      Code = 412
	ErrUnknownCommand    Code = 421
	ErrNoMOTD            Code = 422
	ErrNoNicknameGiven   Code = 431
	ErrErroneusNickname  Code = 432
	ErrNicknameInUse     Code = 433
	ErrNotOnChannel      Code = 442
	ErrSummonDisabled    Code = 445
	ErrUsersDisabled     Code = 446
	ErrNotRegistered     Code = 451
	ErrNeedMoreParams    Code = 461
	ErrAlreadyRegistered Code = 462
	ErrPasswdMismatch    Code = 464
	ErrNoPrivileges      Code = 481
)
