package constants

// ExitCodeTimeout is reported when a command is killed for exceeding its timeout
const ExitCodeTimeout = 124
