package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roffe/muxscope"
	"github.com/roffe/muxscope/pkg/hidsource"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and scanner HID interfaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := muxscope.ListSerialPorts()
		if err != nil {
			return err
		}
		fmt.Println("serial ports:")
		if len(ports) == 0 {
			fmt.Println("  none")
		}
		for _, p := range ports {
			fmt.Printf("  %s\n", p.Name)
			if p.IsUSB {
				fmt.Printf("     USB ID      %s:%s\n", p.VID, p.PID)
				fmt.Printf("     USB serial  %s\n", p.SerialNumber)
			}
		}

		all, err := cmd.Flags().GetBool("all-hid")
		if err != nil {
			return err
		}
		var vid, pid uint16 = hidsource.DefaultVendorID, hidsource.DefaultProductID
		if all {
			vid, pid = 0, 0
		}
		devs, err := hidsource.List(vid, pid)
		if err != nil {
			// hidapi may be unavailable, serial ports are still useful
			log.Warn().Err(err).Msg("hid enumeration failed")
			return nil
		}
		fmt.Println("hid interfaces:")
		if len(devs) == 0 {
			fmt.Println("  none")
		}
		for _, d := range devs {
			fmt.Printf("  %s\n", d)
		}
		return nil
	},
}

func init() {
	portsCmd.Flags().Bool("all-hid", false, "list every hid interface, not only the scanner")
	rootCmd.AddCommand(portsCmd)
}
