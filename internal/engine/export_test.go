package engine

const MaxKeyAttempts = maxKeyAttempts
