package adminauth

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// SSMAPI is the subset of *ssm.Client used to read the secret.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// KMSAPI is the subset of *kms.Client used to decrypt the secret.
type KMSAPI interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Source says where the admin secret comes from. The first non-empty of
// Literal, SSMParam and KMSCiphertext wins.
type Source struct {
	Literal string

	SSMParam string
	SSM      SSMAPI

	// KMSCiphertext is base64 encoded ciphertext from kms encrypt.
	KMSCiphertext string
	KMS           KMSAPI
}

// Kind names the selected source for logs, "none" when nothing is configured.
func (s Source) Kind() string {
	switch {
	case s.Literal != "":
		return "literal"
	case s.SSMParam != "":
		return "ssm"
	case s.KMSCiphertext != "":
		return "kms"
	}
	return "none"
}

// LoadSecret resolves the admin secret. With no source configured it returns
// "" and no error; every admin request then fails closed.
func LoadSecret(ctx context.Context, src Source) (string, error) {
	switch src.Kind() {
	case "literal":
		return strings.TrimSpace(src.Literal), nil
	case "ssm":
		return loadSSM(ctx, src)
	case "kms":
		return loadKMS(ctx, src)
	}
	return "", nil
}

func loadSSM(ctx context.Context, src Source) (string, error) {
	if src.SSM == nil {
		return "", xerrors.New("ssm client is required for admin secret parameter")
	}
	out, err := src.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(src.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", src.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", src.SSMParam)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", src.SSMParam)
	}
	return v, nil
}

func loadKMS(ctx context.Context, src Source) (string, error) {
	if src.KMS == nil {
		return "", xerrors.New("kms client is required for admin secret ciphertext")
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(src.KMSCiphertext))
	if err != nil {
		return "", xerrors.Wrap(err, "decode admin secret ciphertext")
	}
	out, err := src.KMS.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return "", xerrors.Wrap(err, "kms decrypt admin secret")
	}
	v := strings.TrimSpace(string(out.Plaintext))
	if v == "" {
		return "", xerrors.New("kms decrypted admin secret is empty")
	}
	return v, nil
}
