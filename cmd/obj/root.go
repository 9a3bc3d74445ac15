package obj

import (
	"github.com/ValentinKolb/objkv/cmd/util"
	"github.com/ValentinKolb/objkv/lib/common"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	log = logger.GetLogger("cli")

	objStore store.IStore
	conf     *common.Config

	// ObjectCommands represents the object store command group
	ObjectCommands = &cobra.Command{
		Use:   "obj",
		Short: "Perform object store operations",
		Long: `Perform object store operations on the users_md and users_img stores.
Records are given as JSON objects and must carry a "uuid".`,
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the flags needed to open the store
	util.SetupStoreFlags(ObjectCommands)

	// Add subcommands
	ObjectCommands.AddCommand(insertCmd)
	ObjectCommands.AddCommand(upsertCmd)
	ObjectCommands.AddCommand(getCmd)
	ObjectCommands.AddCommand(scanCmd)
	ObjectCommands.AddCommand(findCmd)
	ObjectCommands.AddCommand(findAllCmd)
	ObjectCommands.AddCommand(pageCmd)
	ObjectCommands.AddCommand(delCmd)
	ObjectCommands.AddCommand(delIndexCmd)
	ObjectCommands.AddCommand(infoCmd)
	ObjectCommands.AddCommand(statsCmd)
	ObjectCommands.AddCommand(perfTestCmd)
}

// setupStore opens the configured store
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf = util.GetConfig()
	var err error
	objStore, err = util.OpenStore(conf)
	if err != nil {
		return err
	}
	log.Debugf("opened store with configuration:\n%s", conf)
	return nil
}

// closeStore closes the store after the command ran
func closeStore(_ *cobra.Command, _ []string) error {
	if objStore == nil {
		return nil
	}
	return objStore.Close()
}
