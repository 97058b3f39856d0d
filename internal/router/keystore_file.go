package router

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// FileKeystore loads PEM-encoded key/cert/CA material from paths named
// in config and caches it in memory for the process lifetime, reloaded
// only on restart. GetKeystore is cheap: it returns the cached value,
// acquired once per dispatch per §5.
type FileKeystore struct {
	once sync.Once
	data *KeystoreData
	err  error

	keyFile  string
	certFile string
	caFiles  map[string]string
}

func NewFileKeystore(keyFile, certFile string, caFiles map[string]string) *FileKeystore {
	return &FileKeystore{keyFile: keyFile, certFile: certFile, caFiles: caFiles}
}

func (k *FileKeystore) GetKeystore(ctx context.Context) (*KeystoreData, error) {
	k.once.Do(k.load)
	return k.data, k.err
}

func (k *FileKeystore) load() {
	data := &KeystoreData{CA: make(map[string]CertEntry, len(k.caFiles))}

	if k.keyFile != "" {
		key, err := os.ReadFile(k.keyFile)
		if err != nil {
			k.err = fmt.Errorf("failed to read keystore key file: %w", err)
			return
		}
		data.Key = key
	}

	if k.certFile != "" {
		cert, err := os.ReadFile(k.certFile)
		if err != nil {
			k.err = fmt.Errorf("failed to read keystore cert file: %w", err)
			return
		}
		data.Cert = CertEntry{Data: cert}
	}

	for name, path := range k.caFiles {
		ca, err := os.ReadFile(path)
		if err != nil {
			k.err = fmt.Errorf("failed to read CA file %q: %w", name, err)
			return
		}
		data.CA[name] = CertEntry{Data: ca}
	}

	k.data = data
}
