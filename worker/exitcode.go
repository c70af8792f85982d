package worker

// Exit codes, matching spec.md §6's selected list verbatim so the
// dispatcher's interpretation of a worker's exit status stays stable.
const (
	TransferSuccess = iota
	ConnectError
	AuthError
	UserError
	PasswordError
	TypeError
	ChdirError
	OpenRemoteError
	WriteRemoteError
	ReadRemoteError
	CloseRemoteError
	MoveRemoteError
	DeleteRemoteError
	WriteLockError
	RemoveLockfileError
	StatTargetError
	FileSizeMatchError
	OpenLocalError
	ReadLocalError
	WriteLocalError
	AllocError
	StillFilesToSend
	GotKilled
	Incorrect
)
