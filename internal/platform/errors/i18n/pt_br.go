package i18n

var ptBRMessages = map[Code]string{
	CodeUnknown:                     "Algo deu errado. Tente novamente.",
	CodeChallengeMismatch:           "Esta tentativa de login expirou. Tente novamente.",
	CodeChallengeNotFound:           "Esta tentativa de login expirou. Tente novamente.",
	CodeAttestationMalformed:        "Seu navegador enviou uma resposta de passkey ilegível.",
	CodeClientDataInvalid:           "Seu navegador enviou uma resposta de login ilegível.",
	CodeWrongCeremonyType:           "Seu navegador respondeu ao tipo errado de solicitação.",
	CodeOriginMismatch:              "Este login não veio de um site aprovado.",
	CodeCredentialAlreadyRegistered: "Esta passkey já está registrada.",
	CodeCredentialNotFound:          "Não reconhecemos essa passkey.",
	CodeSignatureInvalid:            "Não foi possível verificar essa passkey.",
	CodeCounterRegression:           "Não foi possível verificar essa passkey.",
	CodeUsernameAlreadyExists:       "Já existe uma conta com esse email.",
	CodeInvalidCredentials:          "Email ou senha incorretos.",
	CodeInvalidAccountState:         "Esta conta não tem método de login utilizável. Contate o suporte.",
	CodeEmailInvalid:                "Informe um email válido.",
	CodePasswordTooShort:            "A senha deve ter pelo menos {{.MinLength}} caracteres.",
	CodeAuthenticationCancelled:     "O login foi cancelado.",
	CodePasskeyAuthenticationFailed: "O login com passkey falhou. Tente novamente ou use sua senha.",
	CodePasskeyNotSupported:         "Este navegador não oferece suporte a passkeys.",
	CodeCannotConnect:               "Sem conexão com o servidor. Verifique sua rede e tente novamente.",
	CodeGrantInvalid:                "A credencial de serviço é inválida.",
	CodeGrantExpired:                "A credencial de serviço expirou.",
	CodeGrantMismatch:               "A credencial de serviço não cobre esta operação.",
	CodeNotFound:                    "Não encontrado.",
}

func init() {
	RegisterCatalog("pt-BR", NewCatalog("pt-BR", ptBRMessages))
}
