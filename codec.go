package exword

// UTF16 encodes s as UTF-16 in the session byte order, without a
// terminator.
func (s *Session) UTF16(str string) ([]byte, error) {
	b, err := s.codec.ToUTF16(str)
	if err != nil {
		return nil, newError("codec", CodeInvalidArgument, err)
	}
	return b, nil
}

// FromUTF16 decodes a UTF-16 name. Trailing NUL code units are dropped.
func (s *Session) FromUTF16(b []byte) (string, error) {
	str, err := s.codec.FromUTF16(b)
	if err != nil {
		return "", newError("codec", CodeMalformed, err)
	}
	return str, nil
}

// LocaleBytes encodes str in the code page of the session locale.
func (s *Session) LocaleBytes(str string) ([]byte, error) {
	b, err := s.codec.ToLocale(str)
	if err != nil {
		return nil, newError("codec", CodeInvalidArgument, err)
	}
	return b, nil
}

// FromLocaleBytes decodes a name in the session locale's code page.
func (s *Session) FromLocaleBytes(b []byte) (string, error) {
	str, err := s.codec.FromLocale(b)
	if err != nil {
		return "", newError("codec", CodeMalformed, err)
	}
	return str, nil
}
