package crypto

const (
	// RSAKeyBits is the modulus size for generated keypairs.
	RSAKeyBits = 2048

	// RSACiphertextSize is the size of one OAEP ciphertext block for a
	// 2048-bit modulus.
	RSACiphertextSize = RSAKeyBits / 8

	// RSAMaxPlaintextSize is the OAEP single-block plaintext capacity for a
	// 2048-bit modulus with SHA-256: 256 - 2*32 - 2.
	RSAMaxPlaintextSize = RSACiphertextSize - 2*32 - 2

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// PasswordSaltSize is the salt size for the password KDF. Part of the
	// packed export format, so it cannot change without a format version bump.
	PasswordSaltSize = 16

	// PBKDF2Iterations is the stretch count for both the password KDF and
	// the wallet-signature KDF.
	PBKDF2Iterations = 100_000

	// WalletSignaturePrefixSize is how many bytes of the wallet signature
	// feed the wallet-key derivation.
	WalletSignaturePrefixSize = 32
)

// KeyDerivationMessagePrefix is the fixed, versioned message template the
// wallet signs to derive its key-wrapping key. The same wallet signing this
// message must always produce the same signature; every escrowed private key
// depends on that.
const KeyDerivationMessagePrefix = "WalletMail Key Encryption v1\nWallet: "

// walletDerivationSalt is the fixed application salt for the wallet-signature
// KDF. Changing it orphans every escrowed key; the derivation is versioned
// through the message template instead.
var walletDerivationSalt = []byte("walletmail:key-wrap:v1")
