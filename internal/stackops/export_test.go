package stackops

func (i *Inspector) SetCallerReference(fn func() string) {
	i.callerReference = fn
}
