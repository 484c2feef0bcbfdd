package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"safe-ledger/pkg/address"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CastSigner signs through a foundry keystore account with `cast wallet`.
type CastSigner struct {
	Binary   string
	Account  string
	Password string // empty: cast prompts on the terminal

	run  commandRunner
	addr *common.Address
}

func NewCastSigner(binary, account, password string) *CastSigner {
	if binary == "" {
		binary = "cast"
	}
	return &CastSigner{Binary: binary, Account: account, Password: password, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errno.Wrap(errno.ErrSignerFailed, err, "%s", msg)
		}
		return nil, errno.Wrap(errno.ErrSignerFailed, err, "%s %s", name, args[0])
	}
	return stdout.Bytes(), nil
}

func (s *CastSigner) accountArgs() []string {
	args := []string{"--account", s.Account}
	if s.Password != "" {
		args = append(args, "--password", s.Password)
	}
	return args
}

func (s *CastSigner) Address(ctx context.Context) (common.Address, error) {
	if s.addr != nil {
		return *s.addr, nil
	}
	out, err := s.run(ctx, s.Binary, append([]string{"wallet", "address"}, s.accountArgs()...)...)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := address.Parse(strings.TrimSpace(string(out)))
	if err != nil {
		return common.Address{}, errno.Wrap(errno.ErrSignerFailed, err, "cast wallet address output")
	}
	s.addr = &addr
	return addr, nil
}

// Sign passes the pre-image to `cast wallet sign --data`, which signs it as EIP-712 typed data.
func (s *CastSigner) Sign(ctx context.Context, preimage *safetx.Preimage) ([]byte, error) {
	data, err := json.Marshal(preimage)
	if err != nil {
		return nil, err
	}
	args := append([]string{"wallet", "sign"}, s.accountArgs()...)
	args = append(args, "--data", string(data))
	out, err := s.run(ctx, s.Binary, args...)
	if err != nil {
		return nil, err
	}
	sig, err := hexutil.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, errno.Wrap(errno.ErrSignerFailed, err, "cast wallet sign output")
	}
	return sig, nil
}
